package retention

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Sweep is the unit of work a Scheduler repeats.
type Sweep interface {
	Run(ctx context.Context, opts Options) (Result, error)
}

// Scheduler runs a sweep on a fixed interval. A non-positive interval
// disables it.
type Scheduler struct {
	Sweep    Sweep
	Interval time.Duration
	Options  Options
	Log      *zap.Logger
}

func (s Scheduler) Run(ctx context.Context) error {
	if s.Sweep == nil || s.Interval <= 0 {
		return nil
	}
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				log.Error("retention sweep failed", zap.Error(err))
			}
		}
	}
}

func (s Scheduler) tick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("retention sweep panicked: %v", r)
		}
	}()
	_, err = s.Sweep.Run(ctx, s.Options)
	return err
}
