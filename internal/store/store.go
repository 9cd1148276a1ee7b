// Package store persists dispatch reports and quota runs to PostgreSQL so
// operators can audit what was published where, and when a target's quota
// was exhausted.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/mxkodo/pubcast/api/schemas"
)

// DBPool abstracts pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store is the PostgreSQL audit log.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New verifies the connection and returns a store.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const sqlInsertDistribution = `
	INSERT INTO distribution_logs (dispatch_id, target, payload_kind, succeeded, error_kind, error_detail, evidence, duration_ms, started_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`

// SaveReport writes one row per target result in a single transaction, so a
// partially written report can never mislead an audit.
func (s *Store) SaveReport(ctx context.Context, report schemas.DistributionReport) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	startedAtUTC := report.StartedAt.UTC()
	for _, r := range report.Results {
		if _, err := tx.Exec(ctx, sqlInsertDistribution,
			report.ID, r.Target, string(report.Payload),
			r.Succeeded, string(r.ErrorKind), r.ErrorDetail,
			r.Evidence, r.Duration.Milliseconds(), startedAtUTC,
		); err != nil {
			return fmt.Errorf("failed to insert distribution log for %s: %w", r.Target, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Dispatch report persisted.",
		zap.String("dispatch_id", report.ID),
		zap.Int("results", len(report.Results)))
	return nil
}

const sqlInsertQuotaRun = `
	INSERT INTO quota_runs (id, target, status, reason, started_at, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6);
`

// SaveQuotaRun writes the run header and bulk-copies its attempts.
func (s *Store) SaveQuotaRun(ctx context.Context, run schemas.QuotaRun) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, sqlInsertQuotaRun,
		run.ID, run.Target, string(run.Status), run.Reason,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	); err != nil {
		return fmt.Errorf("failed to insert quota run: %w", err)
	}

	if len(run.Attempts) > 0 {
		rows := make([][]interface{}, len(run.Attempts))
		for i, a := range run.Attempts {
			rows[i] = []interface{}{
				run.ID, a.Number, a.Timestamp.UTC(),
				counterValue(a.Before), counterValue(a.After),
				a.Succeeded, a.Error, a.Evidence,
			}
		}
		copyCount, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{"quota_attempts"},
			[]string{"run_id", "attempt", "attempted_at", "remaining_before", "remaining_after", "succeeded", "error", "evidence"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("failed to copy quota attempts: %w", err)
		}
		if int(copyCount) != len(run.Attempts) {
			return fmt.Errorf("mismatch in copied attempt count: expected %d, got %d", len(run.Attempts), copyCount)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug("Quota run persisted.",
		zap.String("run_id", run.ID),
		zap.Int("attempts", len(run.Attempts)))
	return nil
}

// counterValue maps an Unknown counter to NULL rather than a fake zero.
func counterValue(c schemas.Counter) interface{} {
	if !c.Known {
		return nil
	}
	return c.Remaining
}
