package store

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed migrations/001_init.sql
var migrationSQL string

// Migrate creates the schema. Every statement is idempotent so this is
// safe to run on each startup.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, migrationSQL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
