// Package mailq delivers outbound mail off the request path.
//
// Enqueue never blocks: a full buffer drops the message and reports it.
// Delivery failures are logged and reported but never retried, so a caller's
// state change is never coupled to mail delivery.
package mailq

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authcore/internal/workq"
	"github.com/MrEthical07/authcore/mail"
)

// Config controls buffering and delivery.
type Config struct {
	BufferSize  int
	Workers     int
	SendTimeout time.Duration
}

// Outcome reports what happened to one message.
type Outcome int

const (
	Delivered Outcome = iota
	Failed
	Dropped
)

// Queue relays messages to a mail.Mailer from a small worker pool.
type Queue struct {
	mailer  mail.Mailer
	logger  *slog.Logger
	cfg     Config
	observe func(kind string, outcome Outcome)
	work    *workq.Queue[mail.Message]
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// New starts the workers. observe, if non-nil, is called once per message.
func New(cfg Config, mailer mail.Mailer, logger *slog.Logger, observe func(kind string, outcome Outcome)) *Queue {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	if observe == nil {
		observe = func(string, Outcome) {}
	}

	q := &Queue{
		mailer:  mailer,
		logger:  logger,
		cfg:     cfg,
		observe: observe,
	}
	q.work = workq.New(cfg.BufferSize, cfg.Workers, q.deliver)
	return q
}

func (q *Queue) deliver(msg mail.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.SendTimeout)
	defer cancel()

	if err := q.mailer.Send(ctx, msg); err != nil {
		q.failed.Add(1)
		q.logger.Error("mail delivery failed",
			slog.String("kind", msg.Kind),
			slog.String("to", msg.To),
			slog.Any("error", err),
		)
		q.observe(msg.Kind, Failed)
		return
	}
	q.observe(msg.Kind, Delivered)
}

// Enqueue hands msg to the workers. It reports false when the message was
// dropped because the queue is full or closed. An accepted message is
// attempted before Close returns.
func (q *Queue) Enqueue(msg mail.Message) bool {
	if q == nil {
		return false
	}
	res := q.work.TryPush(msg)
	if res == workq.Accepted {
		return true
	}
	q.dropped.Add(1)
	q.logger.Warn("mail dropped",
		slog.String("kind", msg.Kind),
		slog.String("to", msg.To),
		slog.String("reason", res.String()),
	)
	q.observe(msg.Kind, Dropped)
	return false
}

// Close stops intake and waits for buffered messages to be attempted.
func (q *Queue) Close() {
	if q == nil {
		return
	}
	q.work.Close()
}

// Dropped returns the number of messages never attempted.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }

// Failed returns the number of messages the mailer rejected.
func (q *Queue) Failed() uint64 { return q.failed.Load() }
