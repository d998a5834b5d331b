package changefeed

import (
	"context"
	"sync"

	"github.com/hilthontt/tenantwire/internal/infrastructure/logging"
	"github.com/hilthontt/tenantwire/internal/persistence/db"
)

const (
	defaultQueueSize = 1024
	defaultWorkers   = 4
)

// Dispatcher runs RecordAndBroadcast off the request path. It always uses
// the executor it was built with, never a caller's transaction.
type Dispatcher struct {
	notifier *Notifier
	exec     db.QueryExecutor
	conn     ConnectionLayer
	logger   logging.Logger
	metrics  *Metrics

	queue   chan Change
	baseCtx context.Context
	workers int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

func WithQueueSize(size int) DispatcherOption {
	return func(d *Dispatcher) {
		if size > 0 {
			d.queue = make(chan Change, size)
		}
	}
}

func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithBaseContext sets the context workers derive from. Its values (trace
// ids, loggers) are kept but its cancellation is not.
func WithBaseContext(ctx context.Context) DispatcherOption {
	return func(d *Dispatcher) { d.baseCtx = ctx }
}

func WithDispatchMetrics(m *Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

func NewDispatcher(notifier *Notifier, exec db.QueryExecutor, conn ConnectionLayer, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		notifier: notifier,
		exec:     exec,
		conn:     conn,
		logger:   notifier.logger,
		metrics:  notifier.metrics,
		queue:    make(chan Change, defaultQueueSize),
		baseCtx:  context.Background(),
		workers:  defaultWorkers,
	}
	for _, opt := range opts {
		opt(d)
	}

	ctx := context.WithoutCancel(d.baseCtx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run(ctx)
	}

	return d
}

// Dispatch queues change without blocking. It reports false when the change
// was dropped because the queue is full or the dispatcher is closed.
func (d *Dispatcher) Dispatch(change Change) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(change, "dispatcher closed")
		return false
	}

	select {
	case d.queue <- change:
		return true
	default:
		d.drop(change, "dispatch queue full")
		return false
	}
}

// Len is the number of queued changes.
func (d *Dispatcher) Len() int {
	return len(d.queue)
}

// Close stops intake and waits until queued changes are processed or ctx
// is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	for change := range d.queue {
		d.notifier.RecordAndBroadcast(ctx, d.exec, d.conn, change)
	}
}

func (d *Dispatcher) drop(change Change, reason string) {
	d.metrics.incDispatchDropped()
	d.logger.Warn(logging.Audit, logging.Dispatch, reason, map[logging.ExtraKey]any{
		logging.ActorID:    change.ActorID,
		logging.EntityType: change.EntityType,
		logging.EntityID:   change.EntityID,
		logging.Action:     string(change.Action),
	})
}
