package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BranchIntl/postqueue/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the part of an AMQP channel the publisher uses
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Connection is the part of an AMQP connection the publisher uses
type Connection interface {
	Channel() (Channel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	IsClosed() bool
	Close() error
}

// Dialer opens a connection to the broker
type Dialer func(uri string) (Connection, error)

// amqpConnection adapts *amqp.Connection to Connection
type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (Channel, error) {
	return c.Connection.Channel()
}

// DialAMQP dials a real broker
func DialAMQP(uri string) (Connection, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn}, nil
}

// Option configures a Publisher
type Option func(*Publisher)

// WithDialer replaces the AMQP dialer
func WithDialer(d Dialer) Option {
	return func(p *Publisher) {
		if d != nil {
			p.dial = d
		}
	}
}

// WithLogger sets the publisher's logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Publisher sends queue events to an AMQP exchange
type Publisher struct {
	options Options
	dial    Dialer
	logger  *slog.Logger

	mu          sync.RWMutex
	connection  Connection
	channel     Channel
	notifyClose chan *amqp.Error
	isConnected bool
	stop        chan struct{}
	closed      bool
}

// NewPublisher creates a publisher; call Connect before publishing
func NewPublisher(options Options, opts ...Option) *Publisher {
	p := &Publisher{
		options: options,
		dial:    DialAMQP,
		logger:  slog.Default(),
		stop:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connect dials the broker and declares the exchange
func (p *Publisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.ErrNotConnected
	}
	if err := p.connect(); err != nil {
		return err
	}

	if p.options.ReconnectEnabled {
		go p.handleReconnection(p.notifyClose)
	}
	return nil
}

// connect expects the caller to hold the lock
func (p *Publisher) connect() error {
	uri := redact(p.options.URI)

	conn, err := p.dial(p.options.URI)
	if err != nil {
		return errors.NewConnectionError(uri,
			fmt.Errorf("failed to connect to RabbitMQ: %w", err))
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return errors.NewConnectionError(uri,
			fmt.Errorf("failed to open channel: %w", err))
	}

	err = ch.ExchangeDeclare(
		p.options.Exchange,     // name
		p.options.ExchangeType, // kind
		true,                   // durable
		false,                  // auto-delete
		false,                  // internal
		false,                  // no-wait
		nil,                    // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return errors.NewConnectionError(uri,
			fmt.Errorf("failed to declare exchange %s: %w", p.options.Exchange, err))
	}

	p.connection = conn
	p.channel = ch
	p.notifyClose = conn.NotifyClose(make(chan *amqp.Error, 1))
	p.isConnected = true
	return nil
}

// handleReconnection redials after an unexpected close until it succeeds
// or the publisher is closed
func (p *Publisher) handleReconnection(notify chan *amqp.Error) {
	for {
		var err *amqp.Error
		select {
		case err = <-notify:
		case <-p.stop:
			return
		}
		if err == nil {
			return // graceful close
		}
		p.logger.Warn("RabbitMQ connection closed, reconnecting", "error", err)

		p.mu.Lock()
		p.isConnected = false
		p.mu.Unlock()

		for {
			select {
			case <-time.After(p.options.ReconnectDelay):
			case <-p.stop:
				return
			}

			p.mu.Lock()
			if p.closed {
				p.mu.Unlock()
				return
			}
			connErr := p.connect()
			notify = p.notifyClose
			p.mu.Unlock()

			if connErr == nil {
				p.logger.Info("Reconnected to RabbitMQ")
				break
			}
			p.logger.Warn("Reconnect failed", "error", connErr)
		}
	}
}

// Publish sends one envelope. The routing key is the prefix joined with
// the event name, e.g. "postqueue.item.completed".
func (p *Publisher) Publish(ctx context.Context, env Envelope) error {
	p.mu.RLock()
	ch := p.channel
	connected := p.isConnected
	p.mu.RUnlock()

	if !connected || ch == nil {
		return errors.ErrNotConnected
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if p.options.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.options.PublishTimeout)
		defer cancel()
	}

	err = ch.PublishWithContext(
		ctx,
		p.options.Exchange,      // exchange
		p.RoutingKey(env.Event), // routing key
		false,                   // mandatory
		false,                   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    env.Timestamp,
			MessageId:    env.ItemID,
			Type:         env.Event,
		})
	if err != nil {
		return errors.NewRemoteError("rabbitmq", "publish", err)
	}
	return nil
}

// RoutingKey maps an event name onto the exchange's routing key space
func (p *Publisher) RoutingKey(event string) string {
	key := strings.ReplaceAll(event, ":", ".")
	if p.options.RoutingPrefix == "" {
		return key
	}
	return p.options.RoutingPrefix + "." + key
}

// Health reports whether the publisher holds an open connection
func (p *Publisher) Health() error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.isConnected || p.connection == nil || p.connection.IsClosed() {
		return errors.ErrNotConnected
	}
	return nil
}

// Type returns the sink type
func (p *Publisher) Type() string {
	return "rabbitmq"
}

// Close stops reconnection and closes the channel and connection
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.stop)
	p.isConnected = false

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			return err
		}
	}
	if p.connection != nil {
		return p.connection.Close()
	}
	return nil
}

// redact hides the password of an AMQP URI
func redact(uri string) string {
	u, err := amqp.ParseURI(uri)
	if err != nil {
		return uri
	}
	if u.Password != "" {
		u.Password = "xxxxx"
	}
	return u.String()
}
