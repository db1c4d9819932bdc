package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// DefaultExchange is the topic exchange events are published to.
const DefaultExchange = "ledger_events"

// channel is the part of *amqp.Channel the producer uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPProducer publishes JSON events to a RabbitMQ topic exchange.
type AMQPProducer struct {
	exchange string
	log      zerolog.Logger

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	reopen   func() (channel, error)
	declared bool
}

// SanitizeURL trims quotes and stray prefixes and checks the scheme.
func SanitizeURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewAMQPProducer dials RabbitMQ and opens a channel.
func NewAMQPProducer(amqpURL, exchange string, log zerolog.Logger) (*AMQPProducer, error) {
	cleanURL, err := SanitizeURL(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("invalid amqp url: %w", err)
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dialing rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	p := &AMQPProducer{
		exchange: exchange,
		log:      log.With().Str("component", "amqp_producer").Logger(),
		conn:     conn,
		ch:       ch,
	}
	p.reopen = func() (channel, error) { return conn.Channel() }
	return p, nil
}

// Publish implements Publisher. A failed publish reopens the channel
// and retries once.
func (p *AMQPProducer) Publish(ctx context.Context, routingKey string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", routingKey, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.publish(ctx, routingKey, payload)
	if err == nil {
		return nil
	}

	p.log.Warn().Err(err).Str("routing_key", routingKey).Msg("publish failed, reopening channel")
	if p.reopen == nil {
		return err
	}
	ch, chErr := p.reopen()
	if chErr != nil {
		return fmt.Errorf("reopening channel: %w", errors.Join(err, chErr))
	}
	_ = p.ch.Close()
	p.ch = ch
	p.declared = false

	return p.publish(ctx, routingKey, payload)
}

func (p *AMQPProducer) publish(ctx context.Context, routingKey string, payload []byte) error {
	if !p.declared {
		if err := p.ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declaring exchange %s: %w", p.exchange, err)
		}
		p.declared = true
	}

	return p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	})
}

// Close implements Publisher.
func (p *AMQPProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// New returns an AMQP producer when amqpURL is set and a Nop publisher
// otherwise. A broker that cannot be reached also falls back to Nop.
func New(amqpURL, exchange string, log zerolog.Logger) Publisher {
	if strings.TrimSpace(amqpURL) == "" {
		return Nop{Log: log}
	}
	p, err := NewAMQPProducer(amqpURL, exchange, log)
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq unavailable, events will not be published")
		return Nop{Log: log}
	}
	return p
}
