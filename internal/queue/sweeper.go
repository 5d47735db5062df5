package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// sweepTimeout bounds a single sweep
const sweepTimeout = 2 * time.Minute

// Sweep is one named cleanup task. Run returns how many items it removed.
type Sweep struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// DLQSweep purges dead-lettered jobs older than retention
func DLQSweep(purger DLQPurger, retention time.Duration) Sweep {
	return Sweep{
		Name: "dlq",
		Run: func(ctx context.Context) (int, error) {
			return purger.PurgeOlderThan(ctx, retention)
		},
	}
}

// Sweeper runs its sweeps on a fixed interval
type Sweeper struct {
	sweeps   []Sweep
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeper creates a sweeper. Sweeps with a nil Run are ignored.
func NewSweeper(interval time.Duration, logger *zap.Logger, sweeps ...Sweep) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sweeper{interval: interval, logger: logger}
	for _, sw := range sweeps {
		if sw.Run != nil {
			s.sweeps = append(s.sweeps, sw)
		}
	}
	return s
}

// Start runs every sweep each interval until ctx is cancelled
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Warn("sweep_failed", zap.Error(err))
			}
		}
	}
}

// RunOnce runs every sweep once. A failing sweep does not stop the others;
// their errors are joined.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	var errs []error
	for _, sw := range s.sweeps {
		sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
		n, err := sw.Run(sweepCtx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s sweep: %w", sw.Name, err))
			continue
		}
		if n > 0 {
			s.logger.Info("sweep_completed", zap.String("sweep", sw.Name), zap.Int("removed", n))
		}
	}
	return errors.Join(errs...)
}
