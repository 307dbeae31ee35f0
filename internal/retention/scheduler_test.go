package retention

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type countingSweep struct {
	runs  atomic.Int32
	panic bool
}

func (c *countingSweep) Run(ctx context.Context, opts Options) (Result, error) {
	c.runs.Add(1)
	if c.panic {
		panic("boom")
	}
	return Result{}, nil
}

func TestScheduler_DisabledReturnsImmediately(t *testing.T) {
	s := Scheduler{Sweep: &countingSweep{}, Interval: 0}
	assert.NoError(t, s.Run(context.Background()))
}

func TestScheduler_RunsUntilCancelled(t *testing.T) {
	sweep := &countingSweep{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Scheduler{Sweep: sweep, Interval: 5 * time.Millisecond, Log: zap.NewNop()}.Run(ctx)
	}()

	assert.Eventually(t, func() bool { return sweep.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestScheduler_RecoversFromPanic(t *testing.T) {
	sweep := &countingSweep{panic: true}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = Scheduler{Sweep: sweep, Interval: 5 * time.Millisecond, Log: zap.NewNop()}.Run(ctx)
	}()

	assert.Eventually(t, func() bool { return sweep.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
}
