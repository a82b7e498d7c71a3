// Package dbtest opens throwaway SQLite databases with the production schema.
package dbtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"naccexam/internal/db"
)

func OpenSQLite(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "naccexam_test.db")
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := db.Open(ctx, db.Config{Driver: db.DriverSQLite, DSN: dsn})
	if err != nil {
		t.Fatalf("open sqlite test db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func CountRows(t *testing.T, conn *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func SeedQuestion(t *testing.T, conn *sql.DB, testID string, id int64, answer string) {
	t.Helper()
	_, err := conn.Exec(`
		INSERT INTO questions (test_id, id, question, option_a, option_b, option_c, option_d, answer)
		VALUES ($1, $2, $3, 'A', 'B', 'C', 'D', $4)
	`, testID, id, "Question "+testID, answer)
	if err != nil {
		t.Fatalf("seed question %s/%d: %v", testID, id, err)
	}
}
