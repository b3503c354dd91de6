package world

import (
	"context"

	"github.com/dm-vev/synth/server/internal/guard"
)

// execQueueSize is the amount of transactions that may be queued before Exec
// blocks.
const execQueueSize = 64

// ExecFunc is a function run on the goroutine driving an Engine.
type ExecFunc func(e *Engine)

// transaction is a function queued through Exec. c is closed once f returned.
type transaction struct {
	c chan struct{}
	f ExecFunc
}

// Exec queues f to be run on the goroutine driving the Engine, which makes it
// safe to call any method of the Engine from f. Exec returns a channel that is
// closed once f has run. Queued functions run at the start of the next Tick
// and, while Run is active, between ticks. A panic in f is logged and the
// channel is closed regardless.
//
// Exec may be called from any goroutine but not from within f or another
// function run on the Engine's goroutine, where the Engine may be used
// directly. Exec blocks if the queue is full, which, once nothing ticks the
// Engine anymore, is forever. Use ExecContext to bound the wait.
func (e *Engine) Exec(f ExecFunc) <-chan struct{} {
	c := make(chan struct{})
	e.queue <- transaction{c: c, f: f}
	return c
}

// ExecContext queues f like Exec, but returns ctx.Err() instead of blocking if
// ctx is done before f could be queued. f is never run if an error is
// returned.
func (e *Engine) ExecContext(ctx context.Context, f ExecFunc) (<-chan struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := make(chan struct{})
	select {
	case e.queue <- transaction{c: c, f: f}:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// run calls the function of the transaction and closes its channel.
func (tx transaction) run(e *Engine) {
	defer close(tx.c)
	if tx.f == nil {
		return
	}
	guard.Run(func() { tx.f(e) }, func(reason any, stack []byte) {
		e.log.Error("Exec panic.", "panic", reason, "stack", string(stack))
	})
}

// handleTransactions runs all transactions currently queued without blocking.
func (e *Engine) handleTransactions() {
	for {
		select {
		case tx := <-e.queue:
			tx.run(e)
		default:
			return
		}
	}
}
