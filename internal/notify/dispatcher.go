package notify

import (
	"context"
	"sync"

	"github.com/akivoy/orion/internal/config"
	"github.com/akivoy/orion/internal/observability"
)

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// Dispatcher runs fire-and-forget deliveries (wait notices, progress
// notices, mark-as-read, persistence writes) on a bounded worker pool.
// Every task's outcome is observed: failures are logged, never dropped
// silently, and a full queue sheds the newest task with a log line rather
// than blocking the caller.
type Dispatcher struct {
	queue  chan task
	log    *observability.Logger
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewDispatcher starts the worker pool.
func NewDispatcher(cfg config.NotifyConfig, log *observability.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		queue:  make(chan task, cfg.QueueSize),
		log:    log,
		cancel: cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	return d
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for t := range d.queue {
		if err := t.fn(ctx); err != nil {
			d.log.Error(ctx, "background delivery failed", "task", t.name, "error", err)
		}
	}
}

// Submit enqueues a task without blocking. It reports false when the
// dispatcher is stopped or the queue is full.
func (d *Dispatcher) Submit(name string, fn func(ctx context.Context) error) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- task{name: name, fn: fn}:
		return true
	default:
		d.log.Warn(context.Background(), "dispatch queue full, task shed", "task", name)
		return false
	}
}

// Stop drains the queue, waits for in-flight tasks and releases the
// workers. Further submissions are rejected.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
}
