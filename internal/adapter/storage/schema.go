package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// applySchema runs every statement of the named schema file. Statements are
// idempotent, so it is safe on every start.
func applySchema(ctx context.Context, db *sql.DB, name string) error {
	script, err := schemaFS.ReadFile("schema/" + name)
	if err != nil {
		return fmt.Errorf("read schema %s: %w", name, err)
	}

	for _, stmt := range strings.Split(string(script), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema %s: %w", name, err)
		}
	}
	return nil
}
