// Package queue publishes booking notifications to RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Shivanand-hulikatti/ticket-booking/internal/config"
	"github.com/Shivanand-hulikatti/ticket-booking/internal/model"
)

// BookingConfirmedEvent is published after a booking has been committed.
type BookingConfirmedEvent struct {
	MessageID        string `json:"message_id"`
	BookingID        int64  `json:"booking_id"`
	EventID          int64  `json:"event_id"`
	EventName        string `json:"event_name"`
	UserName         string `json:"user_name"`
	TicketsBooked    int    `json:"tickets_booked"`
	AvailableTickets int    `json:"available_tickets"`
	SoldOut          bool   `json:"sold_out"`
	ConfirmedAt      string `json:"confirmed_at"`
}

// NewBookingConfirmedEvent builds the message for a committed reservation.
func NewBookingConfirmedEvent(res model.Reservation) BookingConfirmedEvent {
	confirmedAt := res.Booking.CreatedAt
	if confirmedAt.IsZero() {
		confirmedAt = time.Now()
	}
	return BookingConfirmedEvent{
		MessageID:        uuid.NewString(),
		BookingID:        res.Booking.ID,
		EventID:          res.Booking.EventID,
		EventName:        res.EventName,
		UserName:         res.Booking.UserName,
		TicketsBooked:    res.Booking.TicketsBooked,
		AvailableTickets: res.AvailableTickets,
		SoldOut:          res.SoldOut(),
		ConfirmedAt:      confirmedAt.UTC().Format(time.RFC3339),
	}
}

// dialFunc opens a broker connection bounded by ctx; replaced in tests.
type dialFunc func(ctx context.Context, url string) (channelOpener, error)

type channelOpener interface {
	Channel() (publishChannel, error)
	Close() error
}

type publishChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends BookingConfirmedEvent messages to a durable queue. It dials
// the broker per message and holds no connection between publishes.
type Publisher struct {
	url   string
	queue string
	dial  dialFunc
}

// NewPublisher returns a Publisher for cfg, or nil when the queue is disabled.
func NewPublisher(cfg config.QueueConfig) *Publisher {
	if !cfg.Enabled() {
		return nil
	}
	return &Publisher{url: cfg.URL, queue: cfg.QueueName, dial: dialAMQP}
}

// PublishBookingConfirmed sends a persistent message for res. A nil Publisher
// does nothing. The whole exchange with the broker, handshake included, is
// bounded by ctx.
func (p *Publisher) PublishBookingConfirmed(ctx context.Context, res model.Reservation) error {
	if p == nil {
		return nil
	}

	event := NewBookingConfirmedEvent(res)
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal booking event: %w", err)
	}

	conn, err := p.dial(ctx, p.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()
	// Closing the connection unblocks a channel RPC the broker never answers.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", p.queue, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    event.MessageID,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}
	return nil
}

func dialAMQP(ctx context.Context, url string) (channelOpener, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial: func(network, addr string) (net.Conn, error) {
			var d net.Dialer
			c, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			// Covers the AMQP handshake; amqp091 clears it once the
			// connection is open.
			if deadline, ok := ctx.Deadline(); ok {
				if err := c.SetDeadline(deadline); err != nil {
					_ = c.Close()
					return nil, err
				}
			}
			return c, nil
		},
	})
	if err != nil {
		return nil, err
	}
	return amqpConn{conn}, nil
}

type amqpConn struct{ *amqp.Connection }

func (c amqpConn) Channel() (publishChannel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}
