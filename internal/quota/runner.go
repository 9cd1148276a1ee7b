// Package quota implements the refresh-exhaustion loop: drive one adapter's
// read-counter and trigger-refresh capabilities until the remote quota hits
// zero, with a hard attempt ceiling and an audit trail per attempt.
package quota

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mxkodo/pubcast/api/schemas"
	"github.com/mxkodo/pubcast/internal/platform"
)

// DefaultMaxAttempts is the safety ceiling. The loop terminates here even
// when the remote counter never reports zero, which happens when the target
// changes its markup.
const DefaultMaxAttempts = 20

// consecutive Unknown reads tolerated before the run aborts.
const unparsableLimit = 2

// EvidenceSink receives per-attempt screenshots. The zero-value NopSink
// discards them.
type EvidenceSink interface {
	SaveScreenshot(target, label string, png []byte) (string, error)
}

// NopSink discards evidence.
type NopSink struct{}

func (NopSink) SaveScreenshot(string, string, []byte) (string, error) { return "", nil }

// Options tune one run.
type Options struct {
	// MaxAttempts caps the number of refresh actions. Zero means
	// DefaultMaxAttempts.
	MaxAttempts int
	// Pace is the minimum spacing between refresh actions. Zero disables
	// pacing.
	Pace time.Duration
}

// Runner drives one adapter through the exhaustion state machine:
// authenticate, poll, act, poll again, until Done or Aborted.
type Runner struct {
	adapter  platform.Adapter
	sink     EvidenceSink
	logger   *zap.Logger
	maxTries int
	limiter  *rate.Limiter
}

func NewRunner(adapter platform.Adapter, sink EvidenceSink, logger *zap.Logger, opts Options) *Runner {
	maxTries := opts.MaxAttempts
	if maxTries <= 0 {
		maxTries = DefaultMaxAttempts
	}
	if sink == nil {
		sink = NopSink{}
	}
	limit := rate.Inf
	if opts.Pace > 0 {
		limit = rate.Every(opts.Pace)
	}
	return &Runner{
		adapter:  adapter,
		sink:     sink,
		logger:   logger.Named("quota").With(zap.String("target", adapter.Name())),
		maxTries: maxTries,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// Run executes the loop to completion. The returned QuotaRun is always
// complete and inspectable, whichever way the run ends; err is non-nil only
// for Aborted runs and restates the abort reason.
func (r *Runner) Run(ctx context.Context) (schemas.QuotaRun, error) {
	run := schemas.QuotaRun{
		ID:        uuid.New().String(),
		Target:    r.adapter.Name(),
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		run.FinishedAt = time.Now().UTC()
	}()

	if !r.adapter.Capabilities().Has(schemas.CapReadCounter) ||
		!r.adapter.Capabilities().Has(schemas.CapTriggerRefresh) {
		err := schemas.Faultf(schemas.KindUnsupported, "quota.run", "%s has no refresh quota", r.adapter.Name())
		return r.abort(run, err)
	}

	r.logger.Info("Starting quota exhaustion run.", zap.String("run_id", run.ID), zap.Int("max_attempts", r.maxTries))

	if err := r.adapter.Login(ctx); err != nil {
		return r.abort(run, err)
	}

	unparsable := 0
	read := func() (schemas.Counter, error) {
		c, err := r.adapter.ReadCounter(ctx)
		if err != nil {
			return c, err
		}
		if c.Known {
			unparsable = 0
		} else {
			unparsable++
		}
		return c, nil
	}

	for attempt := 1; attempt <= r.maxTries; attempt++ {
		before, err := read()
		if err != nil {
			return r.abort(run, err)
		}
		if unparsable >= unparsableLimit {
			return r.abort(run, schemas.Faultf(schemas.KindUnparsableState, "quota.run",
				"counter unreadable on %d consecutive reads", unparsable))
		}
		if before.Known && before.Remaining == 0 {
			// Already exhausted. Re-running the loop is a no-op.
			run.Status = schemas.RunDone
			r.logger.Info("Quota already exhausted.", zap.Int("attempts", len(run.Attempts)))
			return run, nil
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return r.abort(run, schemas.NewFault(schemas.KindTimeout, "quota.run", err))
		}

		refreshErr := r.adapter.TriggerRefresh(ctx)
		if refreshErr != nil {
			r.logger.Warn("Refresh action failed.", zap.Int("attempt", attempt), zap.Error(refreshErr))
		}

		after, err := read()
		if err != nil {
			return r.abort(run, err)
		}

		entry := schemas.QuotaAttempt{
			Number:    attempt,
			Timestamp: time.Now().UTC(),
			Before:    before,
			After:     after,
			Succeeded: refreshErr == nil && after.Known && (!before.Known || after.Remaining < before.Remaining),
		}
		if refreshErr != nil {
			entry.Error = refreshErr.Error()
		}
		r.capture(ctx, &entry, attempt)
		run.Attempts = append(run.Attempts, entry)

		r.logger.Info("Attempt recorded.",
			zap.Int("attempt", attempt),
			zap.Int("before", before.Remaining),
			zap.Int("after", after.Remaining),
			zap.Bool("succeeded", entry.Succeeded))

		if unparsable >= unparsableLimit {
			return r.abort(run, schemas.Faultf(schemas.KindUnparsableState, "quota.run",
				"counter unreadable on %d consecutive reads", unparsable))
		}
		if after.Known && after.Remaining == 0 {
			run.Status = schemas.RunDone
			r.logger.Info("Quota exhausted.", zap.Int("attempts", len(run.Attempts)))
			return run, nil
		}
	}

	return r.abort(run, schemas.Faultf(schemas.KindTimeout, "quota.run",
		"attempt ceiling %d reached with quota remaining", r.maxTries))
}

// RunOnce performs at most one refresh action: authenticate, read, act if
// quota remains, re-read. The scheduler uses it for timed slots where one
// bump per slot is the point, so an unexhausted counter is still Done.
func (r *Runner) RunOnce(ctx context.Context) (schemas.QuotaRun, error) {
	run := schemas.QuotaRun{
		ID:        uuid.New().String(),
		Target:    r.adapter.Name(),
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		run.FinishedAt = time.Now().UTC()
	}()

	if err := r.adapter.Login(ctx); err != nil {
		return r.abort(run, err)
	}
	before, err := r.adapter.ReadCounter(ctx)
	if err != nil {
		return r.abort(run, err)
	}
	if before.Known && before.Remaining == 0 {
		run.Status = schemas.RunDone
		return run, nil
	}
	refreshErr := r.adapter.TriggerRefresh(ctx)
	after, err := r.adapter.ReadCounter(ctx)
	if err != nil {
		return r.abort(run, err)
	}
	entry := schemas.QuotaAttempt{
		Number:    1,
		Timestamp: time.Now().UTC(),
		Before:    before,
		After:     after,
		Succeeded: refreshErr == nil && after.Known && (!before.Known || after.Remaining < before.Remaining),
	}
	if refreshErr != nil {
		entry.Error = refreshErr.Error()
	}
	r.capture(ctx, &entry, 1)
	run.Attempts = append(run.Attempts, entry)
	run.Status = schemas.RunDone
	return run, nil
}

func (r *Runner) capture(ctx context.Context, entry *schemas.QuotaAttempt, attempt int) {
	png, err := r.adapter.Screenshot(ctx)
	if err != nil {
		r.logger.Debug("Screenshot unavailable for attempt.", zap.Int("attempt", attempt), zap.Error(err))
		return
	}
	ref, err := r.sink.SaveScreenshot(r.adapter.Name(), "quota-attempt", png)
	if err != nil {
		r.logger.Warn("Failed to persist attempt screenshot.", zap.Error(err))
		return
	}
	entry.Evidence = ref
}

func (r *Runner) abort(run schemas.QuotaRun, err error) (schemas.QuotaRun, error) {
	run.Status = schemas.RunAborted
	run.Reason = err.Error()
	r.logger.Warn("Quota run aborted.",
		zap.String("run_id", run.ID),
		zap.String("kind", string(schemas.KindOf(err))),
		zap.Error(err))
	return run, err
}
