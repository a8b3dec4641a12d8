package rabbitmq

import (
	"context"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// publishCall records one PublishWithContext call
type publishCall struct {
	Exchange string
	Key      string
	Msg      amqp.Publishing
}

// MockChannel implements Channel for testing
type MockChannel struct {
	mu         sync.Mutex
	declared   []string
	published  []publishCall
	declareErr error
	publishErr error
	closed     bool
}

func (c *MockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.declareErr != nil {
		return c.declareErr
	}
	c.declared = append(c.declared, name+":"+kind)
	return nil
}

func (c *MockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, publishCall{Exchange: exchange, Key: key, Msg: msg})
	return nil
}

func (c *MockChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *MockChannel) Published() []publishCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]publishCall(nil), c.published...)
}

// MockConnection implements Connection for testing
type MockConnection struct {
	mu         sync.Mutex
	channel    *MockChannel
	channelErr error
	notify     chan *amqp.Error
	closed     bool
}

func (c *MockConnection) Channel() (Channel, error) {
	if c.channelErr != nil {
		return nil, c.channelErr
	}
	return c.channel, nil
}

func (c *MockConnection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = receiver
	return receiver
}

func (c *MockConnection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *MockConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Drop simulates the broker closing the connection
func (c *MockConnection) Drop() {
	c.mu.Lock()
	c.closed = true
	notify := c.notify
	c.mu.Unlock()

	notify <- &amqp.Error{Code: amqp.ConnectionForced, Reason: "broker restart"}
}

// MockDialer hands out connections in order and counts dials
type MockDialer struct {
	mu    sync.Mutex
	conns []*MockConnection
	err   error
	dials int
	uris  []string
}

func NewMockDialer(conns ...*MockConnection) *MockDialer {
	return &MockDialer{conns: conns}
}

func (d *MockDialer) Dial(uri string) (Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	d.uris = append(d.uris, uri)
	if d.err != nil {
		return nil, d.err
	}
	if len(d.conns) == 0 {
		return nil, errors.New("no connection available")
	}
	conn := d.conns[0]
	d.conns = d.conns[1:]
	return conn, nil
}

func (d *MockDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func newMockConnection() *MockConnection {
	return &MockConnection{channel: &MockChannel{}}
}

// recordingPublisher implements EventPublisher for testing Attach
type recordingPublisher struct {
	mu   sync.Mutex
	envs []Envelope
	err  error
}

func (r *recordingPublisher) Publish(ctx context.Context, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.envs = append(r.envs, env)
	return r.err
}

func (r *recordingPublisher) Envelopes() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Envelope(nil), r.envs...)
}
