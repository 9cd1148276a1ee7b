package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mxkodo/pubcast/api/schemas"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mock.ExpectPing()
	st, err := New(context.Background(), mock, zap.NewNop())
	require.NoError(t, err)
	return mock, st
}

func TestNewFailsWhenPingFails(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	_, err = New(context.Background(), mock, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping database")
}

func sampleReport() schemas.DistributionReport {
	return schemas.DistributionReport{
		ID:        "d-1",
		Payload:   schemas.PayloadProfile,
		StartedAt: time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
		Results: []schemas.DistributionResult{
			{Target: "heavennet", Succeeded: true, Evidence: "heavennet-success-1.png", Duration: 40 * time.Second},
			{Target: "deliherutown", Succeeded: false, ErrorKind: schemas.KindAuthenticationFailure, ErrorDetail: "rejected", Duration: 12 * time.Second},
		},
	}
}

func TestSaveReport(t *testing.T) {
	mock, st := newMockStore(t)
	report := sampleReport()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO distribution_logs").
		WithArgs("d-1", "heavennet", "profile", true, "", "", "heavennet-success-1.png", int64(40000), report.StartedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO distribution_logs").
		WithArgs("d-1", "deliherutown", "profile", false, "AuthenticationFailure", "rejected", "", int64(12000), report.StartedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	require.NoError(t, st.SaveReport(context.Background(), report))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReportRollsBackOnFailure(t *testing.T) {
	mock, st := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO distribution_logs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("relation does not exist"))
	mock.ExpectRollback()

	err := st.SaveReport(context.Background(), sampleReport())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heavennet")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveQuotaRun(t *testing.T) {
	mock, st := newMockStore(t)
	run := schemas.QuotaRun{
		ID:         "q-1",
		Target:     "heavennet",
		Status:     schemas.RunDone,
		StartedAt:  time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 8, 29, 9, 3, 0, 0, time.UTC),
		Attempts: []schemas.QuotaAttempt{
			{Number: 1, Timestamp: time.Date(2026, 8, 29, 9, 1, 0, 0, time.UTC),
				Before: schemas.Counter{Remaining: 2, Total: 10, Known: true},
				After:  schemas.Counter{Remaining: 1, Total: 10, Known: true}, Succeeded: true},
			{Number: 2, Timestamp: time.Date(2026, 8, 29, 9, 2, 0, 0, time.UTC),
				Before: schemas.Counter{Remaining: 1, Total: 10, Known: true},
				After:  schemas.Counter{Remaining: 0, Total: 10, Known: true}, Succeeded: true},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO quota_runs").
		WithArgs("q-1", "heavennet", "done", "", run.StartedAt, run.FinishedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"quota_attempts"},
		[]string{"run_id", "attempt", "attempted_at", "remaining_before", "remaining_after", "succeeded", "error", "evidence"}).
		WillReturnResult(2)
	mock.ExpectCommit()
	mock.ExpectRollback()

	require.NoError(t, st.SaveQuotaRun(context.Background(), run))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveQuotaRunWithoutAttempts(t *testing.T) {
	mock, st := newMockStore(t)
	run := schemas.QuotaRun{
		ID: "q-2", Target: "heavennet", Status: schemas.RunDone,
		StartedAt: time.Now().UTC(), FinishedAt: time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO quota_runs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	require.NoError(t, st.SaveQuotaRun(context.Background(), run))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveQuotaRunCopyCountMismatch(t *testing.T) {
	mock, st := newMockStore(t)
	run := schemas.QuotaRun{
		ID: "q-3", Target: "heavennet", Status: schemas.RunAborted,
		StartedAt: time.Now().UTC(), FinishedAt: time.Now().UTC(),
		Attempts: []schemas.QuotaAttempt{{Number: 1}},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO quota_runs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"quota_attempts"},
		[]string{"run_id", "attempt", "attempted_at", "remaining_before", "remaining_after", "succeeded", "error", "evidence"}).
		WillReturnResult(0)
	mock.ExpectRollback()

	err := st.SaveQuotaRun(context.Background(), run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch in copied attempt count")
}
