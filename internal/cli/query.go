//go:build sqlite_vtable

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/tablebridge/pkg/db"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Input string
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [SQL]",
		Short: "Run SQL against registered adapters",
		Long: `Run SQL against registered adapters.

Tables are referenced by resource URI and bound on first use. Aliases
from the config file's "tables" map are bound at startup.

When invoked without arguments on a terminal, enters interactive REPL
mode.`,
		Example: `  # Query a CSV file directly
  tablebridge query 'SELECT * FROM "data.csv" WHERE age > 21'

  # Output as JSON
  tablebridge query 'SELECT * FROM "data.csv"' --format json

  # Interactive mode
  tablebridge query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from file")
	return cmd
}

// openDB opens an engine connection with the process registry and
// binds config-file table aliases.
func openDB(cmd *cobra.Command) (*db.DB, error) {
	ctx := cmd.Context()
	cfg := GetConfig(ctx)
	logger := GetLogger(ctx)

	conn, err := db.Open(NewRegistry(), logger)
	if err != nil {
		return nil, err
	}
	for name, uri := range cfg.Tables {
		if err := conn.Bind(ctx, name, uri); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to bind alias %q: %w", name, err)
		}
	}
	return conn, nil
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cfg := GetConfig(cmd.Context())

	var sqlQuery string
	switch {
	case len(args) > 0:
		sqlQuery = strings.Join(args, " ")
	case opts.Input != "":
		content, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		sqlQuery = string(content)
	case !isTerminal(os.Stdin):
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sqlQuery = string(content)
	default:
		return runREPL(cmd)
	}

	conn, err := openDB(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	return executeAndRender(cmd.Context(), cmd, conn, sqlQuery, cfg.Format)
}

func executeAndRender(ctx context.Context, cmd *cobra.Command, conn *db.DB, sqlQuery, format string) error {
	rows, err := conn.QueryContext(ctx, sqlQuery)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	return renderResults(cmd.OutOrStdout(), rows, format)
}

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List bound tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			return listTables(cmd.Context(), cmd.OutOrStdout(), conn)
		},
	}
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <table>",
		Short: "Show the declared schema for a table URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			return showSchema(cmd.Context(), cmd.OutOrStdout(), conn, args[0])
		},
	}
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
