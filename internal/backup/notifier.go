package backup

import (
	"context"
	"log/slog"
)

// Notifier receives backup outcome events. Delivery is fire-and-forget:
// implementations log their own failures and never propagate them into the
// backup flow.
type Notifier interface {
	Notify(ctx context.Context, kind Kind, message string)
}

// LogNotifier writes outcome events to the application log.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(ctx context.Context, kind Kind, message string) {
	if n.Logger == nil {
		return
	}
	if kind == KindFailure {
		n.Logger.Error("backup notification", slog.String("kind", string(kind)), slog.String("message", message))
		return
	}
	n.Logger.Info("backup notification", slog.String("kind", string(kind)), slog.String("message", message))
}
