package notifications

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/outbox"
	"github.com/angelmondragon/groupbuy-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Payload identifies what a notification is about.
type Payload struct {
	BatchID  uuid.UUID
	OrderID  *uuid.UUID
	EscrowID *uuid.UUID
	Data     map[string]any
}

// Notifier queues user notifications on the outbox. Delivery happens in the outbox
// publisher; a failed enqueue is logged and never reaches the caller.
type Notifier struct {
	db     txRunner
	outbox emitter
	logg   *logger.Logger
}

func NewNotifier(db txRunner, outbox emitter, logg *logger.Logger) (*Notifier, error) {
	if db == nil {
		return nil, errors.New("db required")
	}
	if outbox == nil {
		return nil, errors.New("outbox service required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Notifier{db: db, outbox: outbox, logg: logg}, nil
}

// Notify queues one notification for userID.
func (n *Notifier) Notify(ctx context.Context, userID uuid.UUID, event enums.NotificationEvent, payload Payload) {
	n.NotifyMany(ctx, []uuid.UUID{userID}, event, payload)
}

// NotifyMany queues the same notification for every recipient in one transaction.
func (n *Notifier) NotifyMany(ctx context.Context, recipients []uuid.UUID, event enums.NotificationEvent, payload Payload) {
	recipients = dedupe(recipients)
	if len(recipients) == 0 {
		return
	}
	aggregateType, aggregateID := aggregateFor(payload)
	err := n.db.WithTx(ctx, func(tx *gorm.DB) error {
		for _, recipient := range recipients {
			data := payloads.NotificationRequestedEvent{
				RecipientID: recipient,
				Event:       event,
				BatchID:     payload.BatchID,
				OrderID:     payload.OrderID,
				Data:        payload.Data,
			}
			if err := n.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventNotificationRequested,
				AggregateType: aggregateType,
				AggregateID:   aggregateID,
				Data:          data,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logCtx := n.logg.WithFields(ctx, map[string]any{
			"event":      string(event),
			"batch_id":   payload.BatchID.String(),
			"recipients": len(recipients),
		})
		n.logg.Error(logCtx, "failed to queue notification", err)
	}
}

func aggregateFor(payload Payload) (enums.OutboxAggregateType, uuid.UUID) {
	switch {
	case payload.EscrowID != nil:
		return enums.AggregateEscrowRecord, *payload.EscrowID
	case payload.OrderID != nil:
		return enums.AggregateOrder, *payload.OrderID
	default:
		return enums.AggregateRegionalBatch, payload.BatchID
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
