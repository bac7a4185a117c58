package adapter

import (
	"fmt"
	"sync"
)

// Registry is an ordered list of adapter drivers probed for each
// resource locator. Registration order matters: the first driver whose
// Supports accepts the URI wins.
//
// State is explicit rather than ambient: construct a Registry per
// engine (or use the process-wide Default) and Clear it between tests.
type Registry struct {
	mu      sync.RWMutex
	drivers []Driver
	byName  map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register appends a driver to the probe order. Registering a second
// driver under an existing name replaces the driver but keeps the
// original probe position.
func (r *Registry) Register(d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.byName[d.Name()]; ok {
		r.drivers[i] = d
		return
	}
	r.byName[d.Name()] = len(r.drivers)
	r.drivers = append(r.drivers, d)
}

// Clear removes all registered drivers. Used for test independence.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers = nil
	r.byName = make(map[string]int)
}

// Len returns the number of registered drivers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.drivers)
}

// Drivers returns the registered drivers in probe order.
func (r *Registry) Drivers() []Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Driver, len(r.drivers))
	copy(out, r.drivers)
	return out
}

// Get returns the driver registered under the given name.
func (r *Registry) Get(name string) (Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.drivers[i], true
}

// Resolve probes drivers in registration order and returns the first
// one that supports the URI. A driver whose Supports panics is treated
// as not supporting the URI, never as a discovery error.
func (r *Registry) Resolve(uri string) (Driver, error) {
	for _, d := range r.Drivers() {
		if supports(d, uri) {
			return d, nil
		}
	}
	return nil, &UnsupportedTableError{Table: uri}
}

// String implements fmt.Stringer for debugging output.
func (r *Registry) String() string {
	names := make([]string, 0, r.Len())
	for _, d := range r.Drivers() {
		names = append(names, d.Name())
	}
	return fmt.Sprintf("adapter.Registry%v", names)
}

// supports probes one driver, recovering panics.
func supports(d Driver, uri string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return d.Supports(uri)
}

// Default is the process-wide registry used when no explicit registry
// is supplied.
var Default = NewRegistry()

// Register adds a driver to the Default registry.
func Register(d Driver) {
	Default.Register(d)
}

// Resolve probes the Default registry.
func Resolve(uri string) (Driver, error) {
	return Default.Resolve(uri)
}

// MutationNotSupported builds the error returned when a mutation hits
// an adapter lacking the capability.
func MutationNotSupported(op string, d Driver) error {
	return &NotSupportedError{Op: op, Driver: d.Name()}
}
