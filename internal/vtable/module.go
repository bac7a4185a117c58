//go:build sqlite_vtable

package vtable

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/leapstack-labs/tablebridge/pkg/adapter"
	"github.com/leapstack-labs/tablebridge/pkg/core"
)

// Module adapts one adapter driver to the engine's module protocol.
// One module instance is installed per registered driver on every
// engine connection; the engine then asks it to materialize tables via
// CREATE VIRTUAL TABLE "<uri>" USING <driver>('<uri>').
type Module struct {
	driver adapter.Driver
	logger *slog.Logger
}

// NewModule wraps an adapter driver.
func NewModule(d adapter.Driver, logger *slog.Logger) *Module {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Module{driver: d, logger: logger}
}

// Create implements sqlite3.Module. The virtual table's URI arrives as
// the first module argument, falling back to the table name itself for
// tables created directly with USING <driver> and no arguments.
func (m *Module) Create(c *sqlite3.SQLiteConn, args []string) (sqlite3.VTab, error) {
	uri, err := tableURI(args)
	if err != nil {
		return nil, err
	}

	ad, err := m.driver.Open(uri, m.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open adapter for %q: %w", uri, err)
	}

	schema := ad.Schema()
	if err := c.DeclareVTab(declareSQL(schema)); err != nil {
		return nil, fmt.Errorf("failed to declare virtual table for %q: %w", uri, err)
	}

	m.logger.Debug("virtual table bound", "driver", m.driver.Name(), "uri", uri, "columns", schema.Len())
	return &Table{uri: uri, driver: m.driver, adapter: ad, schema: schema, logger: m.logger}, nil
}

// Connect implements sqlite3.Module. Adapters hold no engine-side
// persistent state, so connecting is the same as creating.
func (m *Module) Connect(c *sqlite3.SQLiteConn, args []string) (sqlite3.VTab, error) {
	return m.Create(c, args)
}

// DestroyModule implements sqlite3.Module.
func (m *Module) DestroyModule() {}

// tableURI extracts the resource URI from the engine's module
// arguments: module name, database name, table name, then user args.
func tableURI(args []string) (string, error) {
	if len(args) > 3 {
		return unquote(args[3]), nil
	}
	if len(args) == 3 {
		return unquote(args[2]), nil
	}
	return "", fmt.Errorf("missing table name in module arguments")
}

// unquote strips one level of SQL quoting from a module argument.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		switch {
		case s[0] == '\'' && s[len(s)-1] == '\'':
			return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
		case s[0] == '"' && s[len(s)-1] == '"':
			return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
		}
	}
	return s
}

// declareSQL renders the engine-facing table declaration from the
// adapter schema. The table name in the declaration is ignored by the
// engine.
func declareSQL(schema *core.Schema) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE x (")
	for i, f := range schema.Fields() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q %s", f.Name, f.Type.SQLType())
	}
	b.WriteString(")")
	return b.String()
}

var _ sqlite3.Module = (*Module)(nil)
