package notifications

import (
	"context"
	"log/slog"

	"arista/internal/logging"
	"arista/internal/workflow"
)

// Subscribe sends a notification for every failed job and one when the queue
// drains. Delivery errors are logged and never affect the run.
func Subscribe(ctx context.Context, m *workflow.Manager, svc Service, logger *slog.Logger) {
	if _, ok := svc.(noopService); ok {
		return
	}
	logger = logging.NewComponentLogger(logger, "notifications")
	// Delivery must not be cut short by a cancelled run.
	ctx = context.WithoutCancel(ctx)

	m.On(workflow.EventJobError, func(ev workflow.Event) {
		if ev.Job.Cancelled() {
			return
		}
		if err := svc.NotifyJobFailed(ctx, ev.Job.Label(), ev.Err); err != nil {
			warnDelivery(logger, err)
		}
	})
	m.On(workflow.EventQueueComplete, func(ev workflow.Event) {
		if ev.Summary == nil {
			return
		}
		s := ev.Summary
		if err := svc.NotifyQueueCompleted(ctx, s.Succeeded, s.Failed, s.Skipped, s.Elapsed); err != nil {
			warnDelivery(logger, err)
		}
	})
}

func warnDelivery(logger *slog.Logger, err error) {
	logging.WarnWithContext(logger, "notification not delivered", "notification_failed",
		logging.Error(err),
		logging.String(logging.FieldImpact, "the run continues without this notification"),
		logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
	)
}
