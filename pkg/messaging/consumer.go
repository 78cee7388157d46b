package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/stockflow/stockflow-backend/pkg/logger"
)

// MessageHandler processes one decoded event
type MessageHandler func(ctx context.Context, event *Event) error

// Consumer reads events from a durable queue and dispatches them to
// per-event-type handlers. Unhandled event types are acked and dropped.
type Consumer struct {
	rmq       *RabbitMQ
	queueName string
	handlers  map[string]MessageHandler
	logger    *logger.Logger
}

// NewConsumer declares the queue (and the dead letter topology it depends
// on) and returns a consumer bound to it.
func NewConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) (*Consumer, error) {
	if err := rmq.DeclareDeadLetterQueue(queueName); err != nil {
		return nil, err
	}
	if _, err := rmq.DeclareQueue(queueName); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	return &Consumer{
		rmq:       rmq,
		queueName: queueName,
		handlers:  make(map[string]MessageHandler),
		logger:    log.WithComponent("consumer"),
	}, nil
}

// Subscribe binds the queue to an exchange with a routing key pattern
func (c *Consumer) Subscribe(exchange, routingKeyPattern string) error {
	if err := c.rmq.DeclareExchange(exchange); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	if err := c.rmq.BindQueue(c.queueName, exchange, routingKeyPattern); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	c.logger.Info().
		Str("queue", c.queueName).
		Str("exchange", exchange).
		Str("routing_key", routingKeyPattern).
		Msg("subscribed to exchange")

	return nil
}

// RegisterHandler registers a handler for an event type
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// Start consumes the queue until ctx is cancelled. When the delivery
// channel closes (broker restart, dropped connection) the consumer redials
// and resumes; durable queues and bindings survive on the broker side.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.consume()
	if err != nil {
		return err
	}

	c.logger.Info().Str("queue", c.queueName).Msg("consumer started")

	go c.run(ctx, msgs)
	return nil
}

func (c *Consumer) consume() (<-chan amqp.Delivery, error) {
	msgs, err := c.rmq.Channel().Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}
	return msgs, nil
}

func (c *Consumer) run(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Str("queue", c.queueName).Msg("consumer stopped")
			return
		case msg, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				c.logger.Warn().Str("queue", c.queueName).Msg("delivery channel closed, reconnecting")
				if err := c.rmq.Reconnect(ctx); err != nil {
					c.logger.Error().Err(err).Str("queue", c.queueName).Msg("consumer giving up")
					return
				}
				next, err := c.consume()
				if err != nil {
					c.logger.Error().Err(err).Str("queue", c.queueName).Msg("failed to resume consuming")
					return
				}
				msgs = next
				continue
			}
			c.handleMessage(ctx, msg)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	var event Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Error().Err(err).Msg("failed to unmarshal event")
		// Malformed body, straight to the DLQ
		msg.Reject(false)
		return
	}

	handler, ok := c.handlers[event.Type]
	if !ok {
		c.logger.Debug().Str("event_type", event.Type).Msg("no handler registered for event type")
		msg.Ack(false)
		return
	}

	ctx = WithCorrelationID(ctx, event.CorrelationID)

	err := handler(ctx, &event)
	if err == nil {
		msg.Ack(false)
		return
	}

	c.logger.Error().
		Err(err).
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Msg("failed to process event")

	// One retry via requeue, then off to the DLQ. Requeued deliveries do
	// not grow an x-death header, so the redelivery flag is the only
	// reliable attempt marker.
	if msg.Redelivered {
		c.logger.Warn().
			Str("event_id", event.ID).
			Msg("retry failed, sending to DLQ")
		msg.Reject(false)
		return
	}

	msg.Nack(false, true)
}
