package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"eventbooking/internal/dispatch"
	"eventbooking/internal/domain"
)

const defaultReceiveBatch = 10

// Consumer pulls envelopes off a queue, decodes them back into domain events,
// and runs the registered handlers. Messages that fail to decode are
// acknowledged and dropped; handler failures leave the message on the queue
// for redelivery, so handlers must tolerate duplicates.
type Consumer struct {
	receiver   domain.QueueReceiver
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger

	receiveBatch  int
	errorInterval time.Duration
}

func NewConsumer(receiver domain.QueueReceiver, dispatcher *dispatch.Dispatcher, logger *slog.Logger) *Consumer {
	return &Consumer{
		receiver:      receiver,
		dispatcher:    dispatcher,
		logger:        logger,
		receiveBatch:  defaultReceiveBatch,
		errorInterval: defaultErrorInterval,
	}
}

// Run receives until ctx is cancelled. The receiver is expected to long-poll,
// so an empty result is not an error and the loop re-polls immediately.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("queue consumer started")
	for {
		if ctx.Err() != nil {
			c.logger.Info("queue consumer stopped")
			return
		}
		messages, err := c.receiver.Receive(ctx, c.receiveBatch)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error("receive queue messages", "error", err)
			sleep(ctx, c.errorInterval)
			continue
		}
		for _, msg := range messages {
			c.handle(ctx, msg)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg domain.QueueMessage) {
	var env domain.OutboxEnvelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		c.logger.Error("discarding malformed queue message", "message_id", msg.ID, "error", err)
		c.ack(ctx, msg)
		return
	}

	event, err := domain.DecodeDomainEvent(env.EventType, env.Payload)
	if err != nil {
		c.logger.Error("discarding undecodable queue message",
			"message_id", msg.ID, "event_type", env.EventType, "error", err)
		c.ack(ctx, msg)
		return
	}

	if err := c.dispatcher.Dispatch(ctx, []domain.DomainEvent{event}); err != nil {
		// Not acked; the queue redelivers after the visibility timeout.
		c.logger.Error("handle queue message", "message_id", msg.ID, "event_type", env.EventType, "error", err)
		return
	}
	c.ack(ctx, msg)
}

func (c *Consumer) ack(ctx context.Context, msg domain.QueueMessage) {
	if err := c.receiver.Ack(ctx, msg); err != nil {
		c.logger.Error("ack queue message", "message_id", msg.ID, "error", err)
	}
}
