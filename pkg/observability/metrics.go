package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics are the business counters exported next to the HTTP metrics. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	appointments metric.Int64Counter
	conflicts    metric.Int64Counter
	uploads      metric.Int64Counter
	orphans      metric.Int64Counter
	payments     metric.Int64Counter
}

func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(tracerName)

	var (
		m   Metrics
		err error
	)
	if m.appointments, err = meter.Int64Counter("clinic_appointments_booked",
		metric.WithDescription("Appointments created or rescheduled into a slot")); err != nil {
		return nil, err
	}
	if m.conflicts, err = meter.Int64Counter("clinic_slot_conflicts",
		metric.WithDescription("Bookings rejected because the slot was held")); err != nil {
		return nil, err
	}
	if m.uploads, err = meter.Int64Counter("clinic_diagnostic_uploads",
		metric.WithDescription("Diagnostic upload attempts by outcome")); err != nil {
		return nil, err
	}
	if m.orphans, err = meter.Int64Counter("clinic_blob_cleanup_failures",
		metric.WithDescription("Blob deletes that failed and may have left an orphan")); err != nil {
		return nil, err
	}
	if m.payments, err = meter.Int64Counter("clinic_fee_payments",
		metric.WithDescription("Fees settled, by payment method")); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Metrics) AppointmentBooked(ctx context.Context) {
	if m != nil {
		m.appointments.Add(ctx, 1)
	}
}

func (m *Metrics) SlotConflict(ctx context.Context) {
	if m != nil {
		m.conflicts.Add(ctx, 1)
	}
}

func (m *Metrics) DiagnosticUpload(ctx context.Context, outcome string) {
	if m != nil {
		m.uploads.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func (m *Metrics) BlobCleanupFailed(ctx context.Context) {
	if m != nil {
		m.orphans.Add(ctx, 1)
	}
}

func (m *Metrics) FeePaid(ctx context.Context, method string) {
	if m != nil {
		m.payments.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
	}
}
