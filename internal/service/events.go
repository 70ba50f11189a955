package service

import (
	"context"
	"errors"
	"log/slog"

	"gorahrib/internal/database"
	"gorahrib/internal/middleware"
	"gorahrib/internal/notifications"
	"gorahrib/internal/observability"
)

// EventPublisher delivers realtime events to a user's channel.
type EventPublisher interface {
	PublishUser(ctx context.Context, userID uint, payload string) error
}

// publish sends a realtime event. Delivery is best-effort and runs after commit.
func publish(ctx context.Context, pub EventPublisher, userID uint, eventType string, payload interface{}) {
	if pub == nil {
		return
	}
	msg, err := notifications.EncodeEvent(eventType, payload)
	if err == nil {
		err = pub.PublishUser(ctx, userID, msg)
	}
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to publish realtime event",
			slog.String("event", eventType), slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
		return
	}
	observability.WebSocketEventsTotal.WithLabelValues(eventType).Inc()
}

// settle records how a counter transaction ended and queues effects for
// after it commits. When ctx carries an outer transaction both wait for the
// outer commit, and a later rollback is recorded instead.
func settle(ctx context.Context, operation string, err error, effects func()) error {
	if err != nil {
		observability.RecordCounterTx(operation, err)
		return err
	}
	if _, nested := database.TxFromContext(ctx); nested {
		database.AfterRollback(ctx, func() {
			observability.RecordCounterTx(operation, errOuterRollback)
		})
	}
	database.AfterCommit(ctx, func() {
		observability.RecordCounterTx(operation, nil)
		effects()
	})
	return nil
}

var errOuterRollback = errors.New("outer transaction rolled back")
