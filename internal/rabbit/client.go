package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"filepub/internal/config"
	"filepub/internal/logging"
	"filepub/pkg/models"
)

// DefaultMaxAttempts is the publish retry ceiling.
const DefaultMaxAttempts = 3

const heartbeat = 600 * time.Second

// connection and channel are the slices of amqp091 the client touches.
// Tests substitute fakes to simulate closed or failing broker state.
type connection interface {
	Channel() (channel, error)
	IsClosed() bool
	Close() error
}

type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	IsClosed() bool
	Close() error
}

type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

type dialFunc func(cfg config.Config) (connection, error)

func dialAMQP(cfg config.Config) (connection, error) {
	conn, err := amqp.DialConfig(cfg.URL(), amqp.Config{Heartbeat: heartbeat})
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn}, nil
}

/*
Client owns the broker connection for a run.

Lifecycle: Connect() opens connection + channel and declares the queue
durable; Publish() checks the connection state before every attempt and
reconnects transparently when the broker closed either side; Close()
shuts down best-effort and is safe to call more than once. The client
is the sole owner of the connection, nothing else reads or mutates it.
*/
type Client struct {
	cfg  config.Config
	log  *logging.Logger
	dial dialFunc
	conn connection
	ch   channel
}

func NewClient(cfg config.Config, log *logging.Logger) *Client {
	return &Client{cfg: cfg, log: log, dial: dialAMQP}
}

// Connect establishes the connection, opens a channel and declares the
// configured queue as durable. Declaring an existing durable queue of
// the same name is a no-op on the broker side. On failure the client
// stays unconnected.
func (c *Client) Connect() error {
	c.log.Infof("connecting to RabbitMQ at %s:%d", c.cfg.Host, c.cfg.Port)

	conn, err := c.dial(c.cfg)
	if err != nil {
		return fmt.Errorf("connecting to %s:%d: %w", c.cfg.Host, c.cfg.Port, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("opening channel: %w", err)
	}

	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declaring queue %q: %w", c.cfg.Queue, err)
	}

	c.conn = conn
	c.ch = ch
	c.log.Infof("connected to RabbitMQ, queue %q ready", c.cfg.Queue)
	return nil
}

// ensureOpen reconnects or reopens the channel when the broker closed
// either one since the last operation.
func (c *Client) ensureOpen() error {
	if c.conn == nil || c.conn.IsClosed() {
		c.log.Warnf("connection closed, reconnecting...")
		return c.Connect()
	}
	if c.ch == nil || c.ch.IsClosed() {
		c.log.Warnf("channel closed, reopening...")
		ch, err := c.conn.Channel()
		if err != nil {
			return fmt.Errorf("reopening channel: %w", err)
		}
		if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
			ch.Close()
			return fmt.Errorf("declaring queue %q: %w", c.cfg.Queue, err)
		}
		c.ch = ch
	}
	return nil
}

// Publish serializes record to JSON and publishes it to the configured
// queue with persistent delivery, retrying up to maxAttempts times.
// The record is dropped after the last failed attempt; the caller
// decides what to do with the returned error.
func (c *Client) Publish(record models.FileRecord, maxAttempts int) error {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encoding record for %s: %w", record.Path, err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.ensureOpen(); err != nil {
			lastErr = err
			c.log.Warnf("publish attempt %d/%d failed: %v", attempt, maxAttempts, err)
			continue
		}

		err := c.ch.PublishWithContext(context.Background(), "", c.cfg.Queue, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		})
		if err == nil {
			c.log.Debugf("published message for %s", record.Path)
			return nil
		}

		lastErr = err
		c.log.Warnf("publish attempt %d/%d failed: %v", attempt, maxAttempts, err)
	}

	return fmt.Errorf("publishing after %d attempts: %w", maxAttempts, lastErr)
}

// Close shuts down the channel then the connection. Secondary errors
// are logged and swallowed; closing an already-closed client is fine.
func (c *Client) Close() {
	if c.ch != nil && !c.ch.IsClosed() {
		if err := c.ch.Close(); err != nil {
			c.log.Warnf("error closing channel: %v", err)
		} else {
			c.log.Debugf("channel closed")
		}
	}
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			c.log.Warnf("error closing connection: %v", err)
		} else {
			c.log.Infof("connection to RabbitMQ closed")
		}
	}
}
