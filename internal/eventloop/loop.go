// Package eventloop provides the single logical thread the mesh runs on.
//
// Transport callbacks, relay frames, timers and analyzer notifications are
// all posted here and executed one at a time, so the state they touch needs
// no locking.
package eventloop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/voicemesh/internal/core"
)

type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}

	workers conc.WaitGroup
}

func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post enqueues fn. It never blocks, so it is safe to call from any
// goroutine including the loop itself.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Go runs work on a tracked goroutine and posts done back onto the loop.
func (l *Loop) Go(work func(), done func()) {
	l.workers.Go(func() {
		work()
		if done != nil {
			l.Post(done)
		}
	})
}

type loopTimer struct {
	t       *time.Timer
	stopped atomic.Bool
}

func (t *loopTimer) Stop() bool {
	t.stopped.Store(true)
	return t.t.Stop()
}

// AfterFunc fires fn on the loop after d. Once Stop returns, fn will not run
// even if the underlying timer already fired.
func (l *Loop) AfterFunc(d time.Duration, fn func()) core.Timer {
	lt := &loopTimer{}
	lt.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if lt.stopped.Load() {
				return
			}
			fn()
		})
	})
	return lt
}

func (l *Loop) Now() time.Time { return time.Now() }

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes posted work until ctx is canceled, then waits for in-flight
// Go workers. Work posted after Run returns is dropped.
func (l *Loop) Run(ctx context.Context) error {
	log.Info().Str("module", "eventloop").Msg("loop started")
	defer func() {
		l.workers.Wait()
		log.Info().Str("module", "eventloop").Msg("loop stopped")
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
		for {
			l.mu.Lock()
			batch := l.queue
			l.queue = nil
			l.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, fn := range batch {
				fn()
			}
		}
	}
}
