// Package sweeper implements the stale-execution sweeper (spec §4.7, §5):
// the sole mechanism for resolving executions orphaned by a crash between
// checkpoints. It has no direct analogue in tako (a single-process CLI has
// no crash-recovery sweep), so its shape is grounded in the teacher's own
// background-task idiom instead: internal/engine/resources.go's
// ResourceManager runs a ticker-driven monitoring loop started and stopped
// by its owner, which this package mirrors for a different payload.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/maestro-org/maestro/internal/domain"
	"github.com/maestro-org/maestro/internal/storage"
)

// Sweeper periodically reaps RUNNING executions whose lastUpdatedAt is
// older than 2x the execution timeout, per spec §5.
type Sweeper struct {
	Executions storage.ExecutionStore
	Lister     StaleLister
	Timeout    time.Duration
	Interval   time.Duration
	Logger     *slog.Logger
	now        func() time.Time
}

// StaleLister finds RUNNING execution ids whose lastUpdatedAt is before cutoff.
// The storage.ExecutionStore interface does not expose a general RUNNING
// scan (spec §4.5 only names by-id and by-workflow lookups); a production
// store implements StaleLister as a narrow, sweeper-only extension.
type StaleLister interface {
	FindStaleRunning(ctx context.Context, cutoff time.Time) ([]string, error)
}

// New builds a Sweeper with spec-default timeout (10 min) and interval (1 min).
func New(executions storage.ExecutionStore, lister StaleLister, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		Executions: executions,
		Lister:     lister,
		Timeout:    10 * time.Minute,
		Interval:   time.Minute,
		Logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run blocks, sweeping on Interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) interval() time.Duration {
	if s.Interval <= 0 {
		return time.Minute
	}
	return s.Interval
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	cutoff := s.now().Add(-2 * s.Timeout)
	stale, err := s.Lister.FindStaleRunning(ctx, cutoff)
	if err != nil {
		s.Logger.Error("sweeper: failed to list stale executions", "error", err)
		return
	}
	for _, executionID := range stale {
		now := s.now()
		if err := s.Executions.SetTerminal(ctx, executionID, domain.StatusFailed, "OrchestratorCrashed: execution exceeded staleness window without a terminal update", now); err != nil {
			s.Logger.Error("sweeper: failed to mark execution failed", "executionId", executionID, "error", err)
			continue
		}
		s.Logger.Warn("sweeper: marked stale execution as failed", "executionId", executionID)
	}
}
