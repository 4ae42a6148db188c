package trading

import (
	"context"
	"sync"
	"time"

	"trading-simulator/src/helpers"
	"trading-simulator/src/logger"
)

// -----------------------------------------------------------------------------
// RepeatingTask runs fn on an interval until stopped. The interval function
// is consulted before every cycle so the delay can change between cycles.
// -----------------------------------------------------------------------------

type RepeatingTask struct {
	name      string
	interval  func() time.Duration
	immediate bool
	fn        func(ctx context.Context)
	Logger    *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// -----------------------------------------------------------------------------

// Every returns an interval function with a fixed period.
func Every(d time.Duration) func() time.Duration {
	return func() time.Duration { return d }
}

// -----------------------------------------------------------------------------

// NewRepeatingTask creates a stopped task. With immediate set, the first run
// happens as soon as the task starts instead of after the first interval.
func NewRepeatingTask(name string, interval func() time.Duration, immediate bool, log *logger.Logger, fn func(ctx context.Context)) *RepeatingTask {
	return &RepeatingTask{
		name:      name,
		interval:  interval,
		immediate: immediate,
		fn:        fn,
		Logger:    log,
	}
}

// -----------------------------------------------------------------------------

// Start launches the loop. Starting a running task is a no-op.
func (t *RepeatingTask) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})

	go t.loop(ctx, t.done)
}

// -----------------------------------------------------------------------------

// Stop cancels the loop and waits for the running cycle to finish.
func (t *RepeatingTask) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// -----------------------------------------------------------------------------

// Running reports whether the loop is active.
func (t *RepeatingTask) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// -----------------------------------------------------------------------------

func (t *RepeatingTask) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if t.immediate {
		t.run(ctx)
	}

	for {
		timer := time.NewTimer(t.interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			t.run(ctx)
		}
	}
}

func (t *RepeatingTask) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	helpers.SafeRun(t.Logger, t.name, func() error {
		t.fn(ctx)
		return nil
	})
}
