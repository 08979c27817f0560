package audit

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/MrEthical07/authcore/internal/workq"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher forwards audit events to a sink from one worker, so the sink
// sees them in emit order.
type Dispatcher struct {
	cfg     Config
	queue   *workq.Queue[Event]
	logger  *slog.Logger
	dropped atomic.Uint64
}

// NewDispatcher starts the forwarding worker. It returns nil when auditing
// is disabled; a nil Dispatcher accepts and ignores every call.
func NewDispatcher(cfg Config, sink Sink, logger *slog.Logger) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{cfg: cfg, logger: logger}
	d.queue = workq.New(cfg.BufferSize, 1, func(event Event) {
		sink.Emit(context.Background(), event)
	})
	return d
}

// Emit enqueues event. With DropIfFull a full buffer drops the event;
// otherwise Emit waits for room until ctx is done. Every event that does not
// reach the sink is counted and logged.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var res workq.Result
	if d.cfg.DropIfFull {
		res = d.queue.TryPush(event)
	} else {
		res = d.queue.Push(ctx, event)
	}
	if res == workq.Accepted {
		return
	}

	total := d.dropped.Add(1)
	d.logger.Warn("audit event dropped",
		slog.String("event_type", event.EventType),
		slog.String("reason", res.String()),
		slog.Uint64("dropped_total", total),
	)
}

// Close stops accepting events and drains what is buffered.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.queue.Close()
}

// Dropped returns the number of events that never reached the sink.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
