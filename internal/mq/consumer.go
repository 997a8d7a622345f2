package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler — функция обработки сообщения.
//
// nil — ack; ошибка — nack с возвратом в очередь;
// ошибка, обёрнутая Permanent, — nack без возврата (в DLQ).
type Handler func(ctx context.Context, msg *Delivery) error

// PermanentError — ошибка, повтор которой не поможет.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return "permanent: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent помечает ошибку как неповторяемую.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent проверяет, помечена ли ошибка как неповторяемая.
func IsPermanent(err error) bool {
	var perm *PermanentError
	return errors.As(err, &perm)
}

// Delivery — доставленное сообщение.
type Delivery struct {
	Message Message
	Raw     amqp.Delivery
}

// Outcome — чем закончилась обработка сообщения.
type Outcome int

const (
	OutcomeAck Outcome = iota
	OutcomeRequeue
	OutcomeDeadLetter
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAck:
		return "ack"
	case OutcomeRequeue:
		return "requeue"
	default:
		return "dead-letter"
	}
}

// Settle решает судьбу сообщения по ошибке handler'а.
// Повторная доставка второй раз в очередь не возвращается.
func Settle(err error, redelivered bool) Outcome {
	switch {
	case err == nil:
		return OutcomeAck
	case IsPermanent(err), redelivered:
		return OutcomeDeadLetter
	default:
		return OutcomeRequeue
	}
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	Queue    string
	Handler  Handler
	Prefetch int // по умолчанию 1
}

// Consumer потребляет сообщения одной очереди и переживает переподключения.
type Consumer struct {
	conn   *Connection
	logger *slog.Logger
	cfg    ConsumerConfig

	cancel context.CancelFunc
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		conn:   conn,
		logger: logger.With("queue", cfg.Queue),
		cfg:    cfg,
	}
}

// Start потребляет сообщения до отмены ctx или Stop. Блокирующий.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	for {
		// подписываемся на сигнал до попытки, чтобы не пропустить переподключение
		reconnected := c.conn.Reconnected()

		deliveries, err := c.subscribe()
		if err != nil {
			c.logger.Error("failed to subscribe", "error", err)
		} else {
			c.logger.Info("consumer started")
			c.drain(ctx, deliveries)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.Done():
			return ErrClosed
		case <-reconnected:
			c.logger.Info("reconnected, restarting consumer")
		}
	}
}

// Stop останавливает Start.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Consumer) subscribe() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	// ack ручной: сообщение подтверждается только после handler'а
	deliveries, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.cfg.Queue, err)
	}
	return deliveries, nil
}

// drain обрабатывает сообщения, пока канал доставки открыт.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				c.logger.Warn("deliveries channel closed")
				return
			}
			c.handle(ctx, raw)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	err := json.Unmarshal(raw.Body, &msg)
	if err != nil {
		err = Permanent(fmt.Errorf("unmarshal message: %w", err))
	} else {
		err = c.cfg.Handler(ctx, &Delivery{Message: msg, Raw: raw})
	}

	outcome := Settle(err, raw.Redelivered)
	if err != nil {
		c.logger.Error("message not processed",
			"message_id", msg.ID,
			"type", msg.Type,
			"outcome", outcome,
			"error", err,
		)
	}

	var ackErr error
	switch outcome {
	case OutcomeAck:
		ackErr = raw.Ack(false)
	case OutcomeRequeue:
		ackErr = raw.Nack(false, true)
	case OutcomeDeadLetter:
		ackErr = raw.Nack(false, false)
	}
	if ackErr != nil {
		c.logger.Warn("failed to settle message", "message_id", msg.ID, "error", ackErr)
	}
}

// ParsePayload приводит payload сообщения к типу T.
//
// После json.Unmarshal конверта payload — это map[string]any,
// поэтому он перекодируется через JSON.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}
