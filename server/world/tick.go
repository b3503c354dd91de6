package world

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrRunning is returned by Engine.Run if the Engine is already being run.
var ErrRunning = errors.New("world: engine already running")

const (
	tpsSampleSize       = 20
	tpsWarningThreshold = 19.0
)

// Run ticks the Engine every Config.TickInterval until ctx is cancelled. The
// ticks per second are measured over every 20 ticks and a warning is logged
// once when they drop below 19. Run returns ctx.Err() when ctx is done, or
// ErrRunning if Run was already called and has not returned yet. Functions
// queued through Exec are run as soon as they arrive.
func (e *Engine) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer e.running.Store(false)

	tc := time.NewTicker(e.conf.TickInterval)
	defer tc.Stop()

	// The threshold is scaled for engines not ticking 20 times per second.
	threshold := tpsWarningThreshold * float64(time.Second/20) / float64(e.conf.TickInterval)

	lastTick := time.Now()
	var (
		durationSum time.Duration
		ticksCount  int
		warned      bool
	)
	for {
		select {
		case <-tc.C:
			tickStart := time.Now()
			duration := tickStart.Sub(lastTick)
			lastTick = tickStart
			if duration > 0 {
				durationSum += duration
				ticksCount++
				if ticksCount >= tpsSampleSize {
					tps := 1.0 / (durationSum / time.Duration(ticksCount)).Seconds()
					e.tps.Store(math.Float64bits(tps))
					if tps < threshold && !warned {
						e.log.Warn("TPS dropped below threshold.", "tps", tps)
						warned = true
					} else if tps >= threshold {
						warned = false
					}
					durationSum, ticksCount = 0, 0
				}
			}
			e.Tick(ctx)
		case tx := <-e.queue:
			tx.run(e)
		case <-ctx.Done():
			e.tps.Store(0)
			return ctx.Err()
		}
	}
}
