package audit

import (
	"context"

	"go.uber.org/zap"

	"checkin/internal/queue"
)

// Sink stores decoded events.
type Sink interface {
	Append(ctx context.Context, evt Event) error
}

// Consumer drains audit messages from a queue into a Sink.
type Consumer struct {
	q    queue.Queue
	sink Sink
	log  *zap.Logger
}

// NewConsumer creates a consumer.
func NewConsumer(q queue.Queue, sink Sink, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{q: q, sink: sink, log: log}
}

// Run blocks until ctx is cancelled or the queue closes. Messages of other
// types are skipped; failed appends are logged and dropped.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range msgs {
		if msg.Type != MessageType {
			continue
		}
		evt, err := Decode(msg)
		if err != nil {
			c.log.Warn("skipping audit message", zap.Error(err))
			continue
		}
		if err := c.sink.Append(ctx, evt); err != nil {
			c.log.Error("append audit event failed",
				zap.String("event_id", evt.ID), zap.String("type", evt.Type), zap.Error(err))
			continue
		}
		c.log.Debug("audit event stored", zap.String("event_id", evt.ID), zap.String("type", evt.Type))
	}
	return ctx.Err()
}

// LogSink writes events to a logger. It backs single-process deployments
// without a Postgres audit log.
type LogSink struct {
	Log *zap.Logger
}

// Append implements Sink.
func (s LogSink) Append(_ context.Context, evt Event) error {
	s.Log.Info("audit",
		zap.String("event_id", evt.ID),
		zap.String("type", evt.Type),
		zap.String("actor", evt.Actor),
		zap.String("record_id", evt.RecordID),
		zap.Any("details", evt.Details),
		zap.Time("at", evt.At))
	return nil
}
