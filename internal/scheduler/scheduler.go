// Package scheduler fires timed refresh slots: each configured HH:MM
// wall-clock time triggers one refresh action against one target, every
// day, in the target's timezone.
package scheduler

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var hhmmPattern = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)

// Job runs one scheduled slot for one target.
type Job func(ctx context.Context, target string)

// Scheduler wraps a cron runner with HH:MM slot registration.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// New builds a scheduler evaluating slots in the given location.
func New(loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		logger: logger.Named("scheduler"),
	}
}

// AddSlot registers a daily HH:MM slot for a target.
func (s *Scheduler) AddSlot(target, slot string, job Job) error {
	m := hhmmPattern.FindStringSubmatch(slot)
	if m == nil {
		return fmt.Errorf("invalid schedule slot %q: want HH:MM", slot)
	}
	spec := fmt.Sprintf("%s %s * * *", m[2], m[1])
	id, err := s.cron.AddFunc(spec, func() {
		started := time.Now()
		s.logger.Info("Scheduled slot fired.", zap.String("target", target), zap.String("slot", slot))
		job(context.Background(), target)
		s.logger.Info("Scheduled slot finished.",
			zap.String("target", target),
			zap.Duration("duration", time.Since(started)))
	})
	if err != nil {
		return fmt.Errorf("registering slot %q: %w", slot, err)
	}
	s.logger.Info("Slot registered.",
		zap.String("target", target),
		zap.String("slot", slot),
		zap.Int("entry_id", int(id)))
	return nil
}

// Start begins firing slots. Non-blocking.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for any in-flight job, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown interrupted: %w", ctx.Err())
	}
}

// NextRuns reports the next firing time of every registered slot, for
// startup logging.
func (s *Scheduler) NextRuns() []time.Time {
	entries := s.cron.Entries()
	next := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		next = append(next, e.Next)
	}
	return next
}
