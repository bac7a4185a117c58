// Package core defines the shared data model for tablebridge: column
// capability descriptors (Field), filter value objects (Equal, Range, In),
// rows with stable identity, and the Bounds mapping handed to adapters
// during a scan.
//
// Everything in this package is a plain value object with no I/O. Both the
// adapter SPI (pkg/adapter) and the virtual-table bridge (internal/vtable)
// build on these types.
package core
