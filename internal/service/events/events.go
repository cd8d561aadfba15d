// Package events publishes clinic domain events. Subjects are
// "<prefix>.<entity>.<verb>" and payloads are JSON.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
)

const DefaultPrefix = "clinic"

// Subject suffixes, joined to the configured prefix.
const (
	PatientProvisioned   = "patient.provisioned"
	AppointmentCreated   = "appointment.created"
	AppointmentCancelled = "appointment.cancelled"
	FeePaid              = "fee.paid"
)

// ---------------------------------------------------------------------------
// Payloads
// ---------------------------------------------------------------------------

type PatientProvisionedEvent struct {
	PatientID  uuid.UUID  `json:"patient_id"`
	IdentityID *uuid.UUID `json:"identity_id,omitempty"`
	Invited    bool       `json:"invited"`
	Channels   []string   `json:"channels"`
}

type AppointmentEvent struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Status        string    `json:"status"`
}

type FeePaidEvent struct {
	FeeID     uuid.UUID       `json:"fee_id"`
	PatientID uuid.UUID       `json:"patient_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
}

// ---------------------------------------------------------------------------
// Publisher
// ---------------------------------------------------------------------------

// Publisher delivers an event for subject. Services treat publishing as
// fire-and-forget: a failure is logged, never returned to the caller.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// Emit publishes and logs any failure.
func Emit(ctx context.Context, p Publisher, subject string, payload any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, subject, payload); err != nil {
		slog.WarnContext(ctx, "events: publish failed", "subject", subject, "err", err)
	}
}

type natsPublisher struct {
	nc     *nats.Conn
	prefix string
}

// NewNATS publishes on nc under prefix (DefaultPrefix when empty).
func NewNATS(nc *nats.Conn, prefix string) Publisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &natsPublisher{nc: nc, prefix: prefix}
}

func (p *natsPublisher) Publish(_ context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}
	return p.nc.Publish(Subject(p.prefix, subject), data)
}

// Subject joins prefix and suffix.
func Subject(prefix, suffix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + "." + suffix
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

type Recorded struct {
	Subject string
	Payload any
}

func (r *Recorder) Publish(_ context.Context, subject string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Subject: subject, Payload: payload})
	return nil
}

// Subjects lists recorded subjects in publish order.
func (r *Recorder) Subjects() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Subject
	}
	return out
}

func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.events...)
}
