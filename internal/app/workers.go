package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"

	"github.com/Alijeyrad/clinic_backend/config"
	"github.com/Alijeyrad/clinic_backend/internal/service/events"
	"github.com/Alijeyrad/clinic_backend/internal/service/notify"
)

// WorkerModule starts the background NATS consumers.
var WorkerModule = fx.Module("workers",
	fx.Invoke(StartWorkers),
)

const handlerTimeout = 30 * time.Second

type workerParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Cfg       *config.Config
	NC        *nats.Conn `optional:"true"`
	Notifier  *notify.Notifier
}

// StartWorkers subscribes the SMS notifier to appointment events. It does
// nothing when NATS is not configured.
func StartWorkers(p workerParams) {
	if p.NC == nil {
		slog.Info("workers: NATS not configured, skipping")
		return
	}

	var subs []*nats.Subscription
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			for _, suffix := range []string{events.AppointmentCreated, events.AppointmentCancelled} {
				sub, err := subscribe(p.NC, events.Subject(p.Cfg.Nats.SubjectPrefix, suffix), p.Notifier.HandleAppointment)
				if err != nil {
					return err
				}
				subs = append(subs, sub)
			}
			slog.Info("sms_worker: started", "subscriptions", len(subs))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			for _, sub := range subs {
				if err := sub.Unsubscribe(); err != nil {
					slog.Warn("sms_worker: unsubscribe failed", "subject", sub.Subject, "err", err)
				}
			}
			return nil
		},
	})
}

func subscribe(nc *nats.Conn, subject string, handle func(ctx context.Context, data []byte) error) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		if err := handle(ctx, msg.Data); err != nil {
			slog.Warn("sms_worker: handle event failed", "subject", msg.Subject, "err", err)
		}
	})
}
