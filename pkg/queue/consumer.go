package queue

import (
	"context"
	"log"
	"time"

	"github.com/countwatch/countwatch/pkg/observe"
)

// Handler processes one delivered batch. A non-nil error redelivers the
// whole batch, so handlers must be idempotent.
type Handler func(ctx context.Context, msgs []Message) error

// ConsumerConfig tunes the delivery loop.
type ConsumerConfig struct {
	BatchSize       int
	MaxReceive      int
	RedeliveryDelay time.Duration
	PollInterval    time.Duration
}

// Consumer polls the queue and hands batches to a handler, applying the
// at-least-once redelivery policy on failure.
type Consumer struct {
	queue   *Queue
	handler Handler
	cfg     ConsumerConfig
	metrics *observe.Metrics
}

// NewConsumer creates a consumer for q invoking handler per batch.
func NewConsumer(q *Queue, handler Handler, cfg ConsumerConfig, metrics *observe.Metrics) *Consumer {
	return &Consumer{queue: q, handler: handler, cfg: cfg, metrics: metrics}
}

// Run delivers batches until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Stopping queue consumer")
			return
		case <-ticker.C:
			c.metrics.QueueDepth.Set(float64(c.queue.Len()))

			batch := c.queue.DequeueBatch(c.cfg.BatchSize)
			if len(batch) == 0 {
				continue
			}

			if err := c.handler(ctx, batch); err != nil {
				c.redeliver(batch, err)
			}
		}
	}
}

// redeliver applies the failure policy to a batch: every message goes back
// for another attempt unless it has exhausted its receive budget.
func (c *Consumer) redeliver(batch []Message, cause error) {
	for _, msg := range batch {
		if msg.ReceiveCount >= c.cfg.MaxReceive {
			c.metrics.MessagesDropped.Inc()
			log.Printf("Dropping message %s after %d attempts: %v", msg.ID, msg.ReceiveCount, cause)
			continue
		}
		c.metrics.MessagesRedelivered.Inc()
		log.Printf("Redelivering message %s (attempt %d) in %v: %v",
			msg.ID, msg.ReceiveCount, c.cfg.RedeliveryDelay, cause)
		c.queue.Redeliver(msg, c.cfg.RedeliveryDelay)
	}
}
