package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNoChannel — соединение не установлено (или переподключается).
var ErrNoChannel = errors.New("no channel available")

// ErrClosed — соединение закрыто вызовом Close.
var ErrClosed = errors.New("connection closed")

// Backoff — экспоненциальная задержка между попытками подключения.
type Backoff struct {
	Min time.Duration
	Max time.Duration
}

// DefaultBackoff: 1s, 2s, 4s ... 30s.
var DefaultBackoff = Backoff{Min: time.Second, Max: 30 * time.Second}

// Next возвращает задержку после current (0 — первая попытка).
func (b Backoff) Next(current time.Duration) time.Duration {
	if current <= 0 {
		return b.Min
	}
	return min(current*2, b.Max)
}

// Connection — AMQP соединение, которое само восстанавливается после разрыва.
//
// Канал один на соединение; публикации и consumer работают через него.
// После переподключения канал заменяется, подписчики Reconnected
// получают закрытый канал-сигнал.
type Connection struct {
	url     string
	logger  *slog.Logger
	backoff Backoff

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	// reconnected закрывается и заменяется при каждом переподключении
	reconnected chan struct{}

	done      chan struct{}
	closeOnce sync.Once
}

// Dial подключается к RabbitMQ, повторяя попытки до отмены ctx.
//
// Брокер может подняться позже сервиса, поэтому первая ошибка не фатальна.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Connection{
		url:         url,
		logger:      logger.With("component", "amqp"),
		backoff:     DefaultBackoff,
		reconnected: make(chan struct{}),
		done:        make(chan struct{}),
	}

	var delay time.Duration
	for {
		err := c.open()
		if err == nil {
			break
		}

		delay = c.backoff.Next(delay)
		c.logger.Warn("rabbitmq not available, retrying", "delay", delay, "error", err)
		if !sleepCtx(ctx, delay) {
			return nil, fmt.Errorf("dial amqp: %w", ctx.Err())
		}
	}

	go c.supervise()
	return c, nil
}

// open устанавливает соединение, открывает канал и подменяет текущие.
func (c *Connection) open() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	c.logger.Info("connected to rabbitmq")
	return nil
}

// supervise ждёт разрыва соединения и переподключается, пока не вызван Close.
func (c *Connection) supervise() {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		lost := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-c.done:
			return
		case amqpErr := <-lost:
			if amqpErr != nil {
				c.logger.Warn("connection lost", "error", amqpErr)
			}
		}

		c.mu.Lock()
		c.channel = nil
		c.mu.Unlock()

		if !c.redial() {
			return
		}

		c.mu.Lock()
		close(c.reconnected)
		c.reconnected = make(chan struct{})
		c.mu.Unlock()

		c.logger.Info("reconnected to rabbitmq")
	}
}

// redial повторяет open до успеха. false — соединение закрыто.
func (c *Connection) redial() bool {
	var delay time.Duration
	for {
		delay = c.backoff.Next(delay)
		select {
		case <-c.done:
			return false
		case <-time.After(delay):
		}

		if err := c.open(); err != nil {
			c.logger.Warn("reconnect failed", "delay", delay, "error", err)
			continue
		}
		return true
	}
}

// Channel возвращает текущий канал или nil во время переподключения.
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// Reconnected возвращает канал, который закроется при следующем переподключении.
func (c *Connection) Reconnected() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reconnected
}

// Done закрывается вызовом Close.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// WithChannel выполняет fn с текущим каналом.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ch := c.Channel()
	if ch == nil {
		return ErrNoChannel
	}
	return fn(ch)
}

// IsConnected проверяет, живо ли соединение (для /healthz).
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed() && c.channel != nil
}

// Close закрывает канал и соединение. Повторный вызов — no-op.
func (c *Connection) Close() error {
	err := ErrClosed
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		defer c.mu.Unlock()

		var errs []error
		if c.channel != nil {
			if cerr := c.channel.Close(); cerr != nil {
				errs = append(errs, fmt.Errorf("close channel: %w", cerr))
			}
		}
		if c.conn != nil {
			if cerr := c.conn.Close(); cerr != nil {
				errs = append(errs, fmt.Errorf("close connection: %w", cerr))
			}
		}
		err = errors.Join(errs...)
		c.logger.Info("connection closed")
	})
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// sleepCtx ждёт d или отмены ctx. false — ctx отменён.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
