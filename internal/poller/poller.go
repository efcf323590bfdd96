package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every refresh interval.
type TickFunc func(ctx context.Context) error

// Options tune poller behaviour.
type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
	RunAtStart   bool
}

// Poller drives a periodic refresh with at-most-one tick in flight: a tick
// that outlives the interval causes the next tick to be skipped, never
// queued. Tick errors are logged and the loop continues; the next tick is
// the retry.
type Poller struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Poller instance.
func New(opts Options, logger zerolog.Logger) *Poller {
	if opts.Interval <= 0 {
		panic("poller interval must be positive")
	}
	return &Poller{opts: opts, logger: logger.With().Str("component", "poller").Logger()}
}

// Run blocks, invoking the tick function until ctx is cancelled. It returns
// only after any in-flight tick has finished.
func (p *Poller) Run(ctx context.Context, tick TickFunc) error {
	if p.opts.StartupDelay > 0 {
		timer := time.NewTimer(p.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	var inFlight atomic.Bool
	var wg sync.WaitGroup

	execute := func() {
		if !inFlight.CompareAndSwap(false, true) {
			p.logger.Debug().Msg("previous tick still in flight; skipping")
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer inFlight.Store(false)
			if err := tick(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error().Err(err).Msg("tick failed")
			}
		}()
	}

	if p.opts.RunAtStart {
		execute()
	}

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			execute()
		}
	}
}
