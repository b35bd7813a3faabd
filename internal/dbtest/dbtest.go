// Package dbtest opens throwaway SQLite databases carrying the service schema.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"crm-webhook/internal/migrations"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Open returns an in-memory database with migrations applied.
// A single connection keeps every query on the same in-memory instance.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_fk=1"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if _, err := migrations.Apply(context.Background(), db, migrations.SQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Count returns the number of rows in table.
func Count(t testing.TB, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
