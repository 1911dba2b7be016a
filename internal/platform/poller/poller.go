// Package poller provides a cancellable fixed-interval background task
// runner. Runs never overlap: if a tick fires while the previous run is
// still in flight, that tick is skipped.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Func is the unit of work executed on each tick. Errors are logged, not
// retried; the next tick runs regardless.
type Func func(ctx context.Context) error

// Poller executes a Func at a fixed interval until its context is cancelled
// or Stop is called.
type Poller struct {
	name     string
	interval time.Duration
	fn       Func
	logger   zerolog.Logger

	busy    atomic.Bool
	skipped atomic.Int64
	runs    atomic.Int64

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func New(name string, interval time.Duration, fn Func, logger zerolog.Logger) *Poller {
	return &Poller{
		name:     name,
		interval: interval,
		fn:       fn,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the polling loop in a goroutine. The loop ends when ctx is
// cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	go p.loop(ctx)
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) runOnce(ctx context.Context) {
	if !p.busy.CompareAndSwap(false, true) {
		p.skipped.Add(1)
		p.logger.Debug().Str("poller", p.name).Msg("previous run still in flight, skipping tick")
		return
	}

	go func() {
		defer p.busy.Store(false)
		p.runs.Add(1)
		if err := p.fn(ctx); err != nil {
			p.logger.Error().Err(err).Str("poller", p.name).Msg("poll run failed")
		}
	}()
}

// Stop ends the polling loop and waits for it to exit. An in-flight run is
// not interrupted beyond whatever its context enforces.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

// Runs returns the number of completed or in-flight run starts.
func (p *Poller) Runs() int64 { return p.runs.Load() }

// Skipped returns the number of ticks skipped because a run was in flight.
func (p *Poller) Skipped() int64 { return p.skipped.Load() }
