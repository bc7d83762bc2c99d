package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// NotificationRequestedEvent asks the notification service to alert one user.
type NotificationRequestedEvent struct {
	RecipientID uuid.UUID               `json:"recipient_id"`
	Event       enums.NotificationEvent `json:"event"`
	BatchID     uuid.UUID               `json:"batch_id"`
	OrderID     *uuid.UUID              `json:"order_id,omitempty"`
	Data        map[string]any          `json:"data,omitempty"`
}
