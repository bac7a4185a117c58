//go:build sqlite_vtable

// Package db exposes registered adapters through the standard
// database/sql interface. Opening a DB installs one virtual-table
// module per adapter driver on an in-memory engine; tables referenced
// by URI are bound on first use, so callers just write SQL.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/leapstack-labs/tablebridge/internal/vtable"
	"github.com/leapstack-labs/tablebridge/pkg/adapter"
)

// DB is a live engine connection with adapter modules installed.
type DB struct {
	engine   *sql.DB
	registry *adapter.Registry
	logger   *slog.Logger
}

// Open creates an in-memory engine and installs a virtual-table module
// for every driver in the registry. A nil registry uses the package
// default; a nil logger discards.
func Open(registry *adapter.Registry, logger *slog.Logger) (*DB, error) {
	if registry == nil {
		registry = adapter.Default
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if registry.Len() == 0 {
		return nil, fmt.Errorf("no adapter drivers registered: %w", adapter.ErrUnsupported)
	}

	drivers := registry.Drivers()

	// database/sql driver names are global, so each DB registers its
	// own uniquely named engine driver carrying its module set.
	name := "tablebridge-" + uuid.NewString()
	sql.Register(name, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			for _, d := range drivers {
				if err := conn.CreateModule(d.Name(), vtable.NewModule(d, logger)); err != nil {
					return fmt.Errorf("failed to install module %q: %w", d.Name(), err)
				}
			}
			return nil
		},
	})

	engine, err := sql.Open(name, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	// An in-memory database exists per connection; pooling would hand
	// out empty siblings.
	engine.SetMaxOpenConns(1)

	logger.Debug("engine opened", "drivers", registry.String())
	return &DB{engine: engine, registry: registry, logger: logger}, nil
}

// Query runs a read statement, binding unknown table URIs on the fly.
func (db *DB) Query(query string, args ...any) (*sql.Rows, error) {
	return db.QueryContext(context.Background(), query, args...)
}

// QueryContext runs a read statement, binding unknown table URIs on
// the fly.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if err := db.ensureTables(ctx, query); err != nil {
		return nil, err
	}
	return db.engine.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row read statement.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	// Binding errors resurface on Scan through the engine's own
	// missing-table error.
	_ = db.ensureTables(ctx, query)
	return db.engine.QueryRowContext(ctx, query, args...)
}

// Exec runs a write statement, binding unknown table URIs on the fly.
func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	return db.ExecContext(context.Background(), query, args...)
}

// ExecContext runs a write statement, binding unknown table URIs on
// the fly.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := db.ensureTables(ctx, query); err != nil {
		return nil, err
	}
	return db.engine.ExecContext(ctx, query, args...)
}

// Tables lists the currently bound table names.
func (db *DB) Tables(ctx context.Context) ([]string, error) {
	rows, err := db.engine.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Schema returns the engine's declaration for a bound table.
func (db *DB) Schema(ctx context.Context, table string) (string, error) {
	var decl sql.NullString
	err := db.engine.QueryRowContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&decl)
	if err == sql.ErrNoRows {
		return "", &adapter.UnsupportedTableError{Table: table}
	}
	if err != nil {
		return "", err
	}
	return decl.String, nil
}

// ColumnInfo describes one column of a bound table.
type ColumnInfo struct {
	Name string
	Type string
}

// Columns lists a bound table's columns in declaration order.
func (db *DB) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	rows, err := db.engine.QueryContext(ctx,
		fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to describe %q: %w", table, err)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, ColumnInfo{Name: name, Type: typ})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, &adapter.UnsupportedTableError{Table: table}
	}
	return cols, nil
}

// Close releases the engine connection.
func (db *DB) Close() error {
	return db.engine.Close()
}

// ensureTables prepares the statement and binds any table it references
// that the engine does not know yet. Preparation is retried once per
// newly bound table so a statement naming several fresh URIs resolves
// in one call.
func (db *DB) ensureTables(ctx context.Context, query string) error {
	bound := make(map[string]bool)
	for {
		stmt, err := db.engine.PrepareContext(ctx, query)
		if err == nil {
			return stmt.Close()
		}
		table, ok := missingTable(err)
		if !ok || bound[table] {
			return err
		}
		if err := db.bind(ctx, table); err != nil {
			return err
		}
		bound[table] = true
	}
}

// bind materializes one table by asking the registry for a driver and
// creating the virtual table under the URI itself as its name.
func (db *DB) bind(ctx context.Context, uri string) error {
	return db.Bind(ctx, uri, uri)
}

// Bind materializes a table under an explicit name, letting callers
// alias long URIs to short identifiers.
func (db *DB) Bind(ctx context.Context, name, uri string) error {
	d, err := db.registry.Resolve(uri)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("CREATE VIRTUAL TABLE %s USING %s(%s)",
		quoteIdent(name), d.Name(), quoteLiteral(uri))
	if _, err := db.engine.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to bind %q via %q: %w", uri, d.Name(), err)
	}
	db.logger.Debug("table bound", "name", name, "uri", uri, "driver", d.Name())
	return nil
}

// missingTable extracts the table name from the engine's unknown-table
// error.
func missingTable(err error) (string, bool) {
	const marker = "no such table: "
	msg := err.Error()
	i := strings.Index(msg, marker)
	if i < 0 {
		return "", false
	}
	return strings.TrimSpace(msg[i+len(marker):]), true
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}
