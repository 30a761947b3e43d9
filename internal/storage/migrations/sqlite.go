package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLiteExecer is satisfied by *sql.DB and *sql.Tx.
type SQLiteExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// RunSQLiteMigrations applies all embedded SQL files in lexical order.
func RunSQLiteMigrations(ctx context.Context, db SQLiteExecer) error {
	files, err := load(SQLiteFS, "sqlite")
	if err != nil {
		return err
	}

	for _, m := range files {
		if _, err := db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}

	return nil
}
