package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrations embed.FS

// EnsureSchema applies the embedded migrations in file-name order. Every
// statement is idempotent, so this runs on each start.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)
	for _, f := range files {
		body, err := migrations.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("apply migration %s: %w", f, err)
		}
	}
	log.Info().Int("files", len(files)).Msg("schema ensured")
	return nil
}

// SyncSequence advances registration_seq past the highest numeric suffix
// already stored under prefix, so rows inserted before the sequence existed
// are never reissued.
func SyncSequence(ctx context.Context, db *sql.DB, prefix string) error {
	var max int64
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(CAST(SUBSTRING(registration_id FROM $2::int) AS BIGINT)), 0)
		   FROM registrations
		  WHERE registration_id LIKE $1 || '%'
		    AND SUBSTRING(registration_id FROM $2::int) ~ '^[0-9]+$'`,
		prefix, len(prefix)+1).Scan(&max)
	if err != nil {
		return fmt.Errorf("scan max registration id: %w", err)
	}
	if max == 0 {
		return nil
	}
	_, err = db.ExecContext(ctx,
		`SELECT setval('registration_seq', GREATEST($1::bigint,
		        (SELECT CASE WHEN is_called THEN last_value ELSE 0 END FROM registration_seq)))`,
		max)
	if err != nil {
		return fmt.Errorf("advance registration_seq: %w", err)
	}
	log.Info().Int64("floor", max).Msg("registration sequence synced")
	return nil
}
