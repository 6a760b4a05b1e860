package workers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	application "courtpay/contexts/settlement-core/settlement-service/application"
	"courtpay/contexts/settlement-core/settlement-service/ports"
)

// CallbackRelay drains the callback outbox and republishes the settlement
// status events to the configured topic. Rows are marked published only
// after the publisher accepts them, so delivery is at-least-once.
type CallbackRelay struct {
	Outbox    ports.OutboxRepository
	Publisher ports.EventPublisher
	Clock     ports.Clock
	Topic     string
	BatchSize int
	Logger    *slog.Logger
}

func (r CallbackRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}
	topic := r.Topic
	if topic == "" {
		topic = "servicerequest.status_changed"
	}

	pending, err := r.Outbox.ListPendingOutbox(ctx, limit)
	if err != nil {
		logger.Error("callback outbox list failed",
			"event", "callback_outbox_list_failed",
			"module", "settlement-core/settlement-service",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock.Now().UTC()
	}

	for _, row := range pending {
		var event ports.EventEnvelope
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			return err
		}
		if err := r.Publisher.Publish(ctx, topic, event); err != nil {
			logger.Error("callback outbox publish failed",
				"event", "callback_outbox_publish_failed",
				"module", "settlement-core/settlement-service",
				"layer", "worker",
				"outbox_id", row.OutboxID,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Outbox.MarkOutboxPublished(ctx, row.OutboxID, now); err != nil {
			return err
		}
	}
	return nil
}
