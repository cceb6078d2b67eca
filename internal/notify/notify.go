package notify

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"uptimebot/internal/domain"
)

// Sink delivers one notification event to its principal. Implementations
// own their transport (webhook, chat, ...); the dispatcher treats any
// returned error as non-fatal.
type Sink interface {
	Send(ctx context.Context, p domain.PrincipalID, ev domain.NotificationEvent) error
}

// Multi fans an event out to several sinks, collecting every failure.
type Multi []Sink

func (m Multi) Send(ctx context.Context, p domain.PrincipalID, ev domain.NotificationEvent) error {
	var err error
	for _, s := range m {
		if s == nil {
			continue
		}
		err = multierr.Append(err, s.Send(ctx, p, ev))
	}
	return err
}

// LogSink writes events to the service log. Used when no real transport
// is configured, so transitions are never silently invisible.
type LogSink struct {
	Logger *zap.Logger
}

func (l *LogSink) Send(_ context.Context, p domain.PrincipalID, ev domain.NotificationEvent) error {
	l.Logger.Info("notification",
		zap.String("principal_id", string(p)),
		zap.String("target_id", string(ev.TargetID)),
		zap.String("url", ev.TargetURL),
		zap.String("transition", string(ev.Transition)),
		zap.String("incident_id", string(ev.IncidentID)),
		zap.Time("at", ev.At),
	)
	return nil
}
