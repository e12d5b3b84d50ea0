package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const (
	AppointmentBooked        = "APPOINTMENT_BOOKED"
	AppointmentRescheduled   = "APPOINTMENT_RESCHEDULED"
	AppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
)

const subjectPrefix = "dental.appointments."

// Event is an appointment change announced to subscribers such as calendar
// views that refresh on change.
type Event struct {
	Type          string         `json:"type"`
	AppointmentID uuid.UUID      `json:"appointment_id"`
	ProviderID    uuid.UUID      `json:"provider_id"`
	Payload       map[string]any `json:"payload,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

// Subject maps APPOINTMENT_BOOKED to dental.appointments.booked.
func Subject(eventType string) string {
	return subjectPrefix + strings.ToLower(strings.TrimPrefix(eventType, "APPOINTMENT_"))
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

type NATSPublisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

func NewNATSPublisher(url string, logger zerolog.Logger) (*NATSPublisher, error) {
	logger = logger.With().Str("component", "events").Logger()
	conn, err := nats.Connect(url,
		nats.Name("dental-availability"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{conn: conn, logger: logger}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(Subject(ev.Type), data); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func (p *NATSPublisher) Ping() error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats status %s", p.conn.Status())
	}
	return nil
}

// Close flushes pending messages before closing the connection.
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
