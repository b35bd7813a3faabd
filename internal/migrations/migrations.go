package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"crm-webhook/pkg/utils"
)

// Dialect selects the schema flavour.
type Dialect string

const (
	Postgres Dialect = "postgres"
	// SQLite is used by tests and throwaway local runs.
	SQLite Dialect = "sqlite"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Apply runs every embedded migration not yet recorded in schema_migrations,
// each in its own transaction, in file name order.
func Apply(ctx context.Context, db *sql.DB, d Dialect) ([]string, error) {
	names, err := fs.Glob(files, string(d)+"/*.sql")
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("migrations: unknown dialect %q", d)
	}
	sort.Strings(names)

	const create = `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)`
	if _, err := db.ExecContext(ctx, create); err != nil {
		return nil, fmt.Errorf("migrations: create schema_migrations: %w", err)
	}

	var applied []string
	for _, name := range names {
		version := strings.TrimSuffix(name[strings.LastIndex(name, "/")+1:], ".sql")
		body, err := files.ReadFile(name)
		if err != nil {
			return applied, err
		}

		ran := false
		err = utils.WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = $1`, version).Scan(&exists)
			if err != nil {
				return err
			}
			if exists > 0 {
				return nil
			}
			for _, stmt := range splitStatements(string(body)) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("%s: %w", version, err)
				}
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
				return err
			}
			ran = true
			return nil
		})
		if err != nil {
			return applied, fmt.Errorf("migrations: %w", err)
		}
		if ran {
			applied = append(applied, version)
		}
	}
	return applied, nil
}

// splitStatements splits on ';' at line ends. The embedded files never put
// semicolons inside literals.
func splitStatements(body string) []string {
	var out []string
	var cur strings.Builder
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}
