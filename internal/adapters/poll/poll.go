// Package poll drives the ingestion loop. One tick runs at a time: when a
// slow provider response makes a tick outlast the interval, the next
// firing is skipped outright rather than queued behind it.
package poll

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/ultralive/pkg/logger"
	"github.com/okian/ultralive/pkg/metrics"
)

// TickFunc is one ingestion pass. The tick ID correlates log lines across
// the pipeline.
type TickFunc func(ctx context.Context, tickID string) error

// Poller fires TickFunc on a fixed interval with an overlap guard.
type Poller struct {
	interval time.Duration
	tick     TickFunc
	log      logger.Logger

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a poller. interval must be positive.
func New(interval time.Duration, tick TickFunc) *Poller {
	return &Poller{
		interval: interval,
		tick:     tick,
		log:      logger.Named("poll"),
	}
}

// Start launches the loop. The first tick fires immediately; subsequent
// ones follow the interval. Returns after the loop goroutine is running.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		p.runOnce(ctx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.runOnce(ctx)
			}
		}
	}()

	p.log.Info(ctx, "poller started", logger.Duration("interval", p.interval))
}

// Stop cancels the loop and waits for any in-flight tick to finish.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.log.Info(context.Background(), "poller stopped")
}

// runOnce executes one guarded tick. A firing that arrives while a tick is
// still in flight is dropped, never deferred.
func (p *Poller) runOnce(ctx context.Context) {
	if !p.running.CompareAndSwap(false, true) {
		metrics.RecordTickSkipped()
		p.log.Warn(ctx, "tick still in flight, skipping")
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.running.Store(false)

		tickID := uuid.NewString()
		start := time.Now()
		metrics.RecordTickRun()

		if err := p.tick(ctx, tickID); err != nil {
			metrics.RecordTickFailed()
			p.log.Error(ctx, "tick failed",
				logger.String("tick_id", tickID),
				logger.Error(err))
		} else {
			p.log.Debug(ctx, "tick complete",
				logger.String("tick_id", tickID),
				logger.Duration("took", time.Since(start)))
		}
		metrics.ObserveTickDuration(time.Since(start))
	}()
}
