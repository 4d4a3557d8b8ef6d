package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/rs/zerolog/log"

	"github.com/esplendidez/fest-registration/internal/config"
)

// ErrUnavailable is returned when every connection attempt failed.
var ErrUnavailable = errors.New("database unavailable")

// Open connects to Postgres and verifies the connection.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenWithRetry calls Open until it succeeds or the policy's attempts run
// out, doubling the delay between attempts up to MaxDelay.
func OpenWithRetry(ctx context.Context, dsn string, p config.RetryPolicy) (*sql.DB, error) {
	return connectWithRetry(ctx, p, func() (*sql.DB, error) { return Open(dsn) }, sleep)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func connectWithRetry(ctx context.Context, p config.RetryPolicy, open func() (*sql.DB, error), wait func(context.Context, time.Duration) error) (*sql.DB, error) {
	delay := p.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		db, err := open()
		if err == nil {
			return db, nil
		}
		lastErr = err
		if attempt == p.MaxAttempts {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("database connection failed")
		if err := wait(ctx, delay); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrUnavailable, p.MaxAttempts, lastErr)
}

// Health pings the pool and reports whether it is reachable.
func Health(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var one int
	return db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}
