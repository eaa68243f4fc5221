package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"mentora/internal/platform/config"
)

// ConnectionProvider owns the single AMQP connection a service reuses across
// its publishers and consumers. Channels are cheap; connections are not.
type ConnectionProvider struct {
	cfg    config.RabbitMQConfig
	logger *slog.Logger

	mu   sync.RWMutex
	conn *amqp.Connection
}

func NewConnectionProvider(cfg config.RabbitMQConfig, logger *slog.Logger) *ConnectionProvider {
	return &ConnectionProvider{cfg: cfg, logger: logger}
}

// Connect dials the broker, retrying with backoff up to ConnectRetryCount.
func (p *ConnectionProvider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil && !p.conn.IsClosed() {
		return nil
	}

	policy := RetryPolicy{
		MaxAttempts: p.cfg.ConnectRetryCount,
		Initial:     p.cfg.InitialRetryInterval,
		Max:         p.cfg.MaxRetryInterval,
		Multiplier:  p.cfg.RetryMultiplier,
	}

	err := processWithRetry(ctx, policy, func(context.Context) error {
		conn, dialErr := amqp.Dial(p.cfg.URL)
		if dialErr != nil {
			p.logger.Warn("broker dial failed, retrying", "error", dialErr)
			return dialErr
		}
		p.conn = conn
		go p.watchClose(conn)
		return nil
	})
	if err != nil {
		return fmt.Errorf("connect to broker after %d attempts: %w", policy.MaxAttempts, err)
	}
	return nil
}

// Get returns a live connection, re-establishing it when necessary.
func (p *ConnectionProvider) Get(ctx context.Context) (*amqp.Connection, error) {
	p.mu.RLock()
	conn := p.conn
	p.mu.RUnlock()

	if conn != nil && !conn.IsClosed() {
		return conn, nil
	}

	if err := p.Connect(ctx); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.conn == nil || p.conn.IsClosed() {
		return nil, fmt.Errorf("broker connection unavailable")
	}
	return p.conn, nil
}

func (p *ConnectionProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn.Close()
	}
	return nil
}

func (p *ConnectionProvider) watchClose(conn *amqp.Connection) {
	err := <-conn.NotifyClose(make(chan *amqp.Error))

	p.mu.Lock()
	if p.conn == conn {
		p.conn = nil
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("broker connection lost, reconnecting", "error", err)
		if rerr := p.Connect(context.Background()); rerr != nil {
			p.logger.Error("broker reconnect failed", "error", rerr)
		}
	}
}

func declareTopicExchange(ch *amqp.Channel, name string) error {
	return ch.ExchangeDeclare(
		name,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
}

func declareDurableQueue(ch *amqp.Channel, name string, args amqp.Table) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		args,
	)
}

func bindQueue(ch *amqp.Channel, queue, routingKey, exchange string) error {
	return ch.QueueBind(queue, routingKey, exchange, false, nil)
}
