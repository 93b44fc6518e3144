// Package main implements the maintenance sweep for the HydraChat backend.
//
// The API keeps itself correct lazily (expired sessions are rejected on use,
// stale daily counts are reset on access), so the tables accumulate dead rows
// over time. This tool removes them in one pass and exits; it is intended to
// run from cron or a scheduled job.
//
// Usage:
//
//	go run ./cmd/ops/maintenance
//	go run ./cmd/ops/maintenance --dry-run
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"hydrachat/internal/config"
	"hydrachat/internal/db"
)

// sweepTimeout bounds the whole run; both statements are single table scans.
const sweepTimeout = 60 * time.Second

func main() {
	dryRun := flag.Bool("dry-run", false, "Report what would be swept without deleting or resetting anything")
	flag.Parse()

	if err := run(*dryRun); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(dryRun bool) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("maintenance sweep starting",
		"environment", cfg.Environment,
		"dry_run", dryRun,
	)

	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	sessions := db.NewSessionRepository(pool)
	subscribers := db.NewSubscriberRepository(pool)

	if dryRun {
		expired, stale, err := countSweepable(ctx, pool)
		if err != nil {
			return err
		}
		logger.Info("dry run complete",
			"expired_sessions", expired,
			"stale_daily_counts", stale,
		)
		return nil
	}

	deleted, err := sessions.DeleteExpired(ctx)
	if err != nil {
		return fmt.Errorf("deleting expired sessions: %w", err)
	}

	reset, err := subscribers.ResetStaleDailyCounts(ctx)
	if err != nil {
		return fmt.Errorf("resetting stale daily counts: %w", err)
	}

	logger.Info("maintenance sweep complete",
		"expired_sessions_deleted", deleted,
		"daily_counts_reset", reset,
	)
	return nil
}

// countSweepable reports how many rows the sweep would touch, using the same
// predicates as the destructive statements.
func countSweepable(ctx context.Context, pool db.DBTX) (int64, int64, error) {
	var expired, stale int64

	err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sessions WHERE expires_at < NOW()`,
	).Scan(&expired)
	if err != nil {
		return 0, 0, fmt.Errorf("counting expired sessions: %w", err)
	}

	err = pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM subscribers
		 WHERE daily_message_count > 0
		   AND (updated_at AT TIME ZONE 'UTC')::date < (NOW() AT TIME ZONE 'UTC')::date`,
	).Scan(&stale)
	if err != nil {
		return 0, 0, fmt.Errorf("counting stale daily counts: %w", err)
	}

	return expired, stale, nil
}
