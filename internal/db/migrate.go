package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies every embedded migration in file-name order. The scripts
// are idempotent (IF NOT EXISTS), so Migrate is safe to call on every start.
func Migrate(ctx context.Context, db DBTX) error {
	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("db: list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		script, err := migrationFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("db: read migration %s: %w", name, err)
		}
		if _, err := db.Exec(ctx, string(script)); err != nil {
			return dbError(fmt.Sprintf("failed to apply migration %s", name), err)
		}
	}
	return nil
}
