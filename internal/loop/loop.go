// Package loop provides the single-threaded executor every connection state
// machine runs on. Callbacks from adapters are posted here so transitions are
// serialized without locks.
package loop

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type Loop struct {
	ctx   context.Context
	clock Clock

	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	manual bool
}

// New creates a loop bound to ctx. Call Run to start executing tasks.
func New(ctx context.Context, clock Clock) *Loop {
	if clock == nil {
		clock = SystemClock
	}
	return &Loop{
		ctx:   ctx,
		clock: clock,
		wake:  make(chan struct{}, 1),
	}
}

// NewManual creates a loop without a goroutine of its own.
// Tasks run only when Flush is called and Go runs its function inline.
func NewManual(clock Clock) *Loop {
	l := New(context.Background(), clock)
	l.manual = true
	return l
}

func (l *Loop) Context() context.Context { return l.ctx }

// Post enqueues fn. Safe from any goroutine, never blocks.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Go runs blocking work off the loop. Results must come back through Post.
func (l *Loop) Go(fn func()) {
	if l.manual {
		fn()
		return
	}
	go fn()
}

// AfterFunc arms a timer whose callback runs on the loop.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	return l.clock.AfterFunc(d, func() { l.Post(fn) })
}

// Every runs fn on the loop every d until stop is called.
func (l *Loop) Every(d time.Duration, fn func()) (stop func()) {
	var (
		mu      sync.Mutex
		stopped bool
		timer   Timer
	)
	var arm func()
	arm = func() {
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		timer = l.AfterFunc(d, func() {
			mu.Lock()
			done := stopped
			mu.Unlock()
			if done {
				return
			}
			fn()
			arm()
		})
	}
	arm()

	return func() {
		mu.Lock()
		defer mu.Unlock()
		stopped = true
		if timer != nil {
			timer.Stop()
		}
	}
}

// Run executes posted tasks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	log.Info().Str("module", "loop").Msg("event loop started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "loop").Msg("event loop stopped")
			return ctx.Err()
		case <-l.wake:
			l.Flush()
		}
	}
}

// Flush runs queued tasks, including ones posted while flushing, until the
// queue is empty. Returns the number of tasks run.
func (l *Loop) Flush() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return n
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.exec(fn)
		n++
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "loop").Interface("panic", r).Msg("task panicked")
		}
	}()
	fn()
}
