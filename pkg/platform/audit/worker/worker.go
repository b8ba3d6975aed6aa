package worker

import (
	"context"
	"log/slog"

	audit "inmates/pkg/platform/audit"
)

// Worker consumes audit events from a channel and persists them. A failed
// Append is reported through onError and does not stop the worker.
type Worker struct {
	store   audit.Store
	inbox   <-chan audit.Event
	logger  *slog.Logger
	onError func(audit.Event, error)
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger, onError func(audit.Event, error)) *Worker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Worker{store: store, inbox: inbox, logger: logger, onError: onError}
}

// Run persists events until the inbox is closed and drained, or ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "failed to persist audit event",
					"action", event.Action,
					"request_id", event.RequestID,
					"error", err,
				)
				if w.onError != nil {
					w.onError(event, err)
				}
			}
		}
	}
}
