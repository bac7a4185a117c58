//go:build sqlite_vtable

// Command tablebridge queries adapter-backed data sources with SQL.
//
// Build with the engine's virtual-table support enabled:
//
//	go build -tags sqlite_vtable ./cmd/tablebridge
package main

import (
	"os"

	"github.com/leapstack-labs/tablebridge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
