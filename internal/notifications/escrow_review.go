package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// VendorResolver maps a batch to the vendor who owns its listing.
type VendorResolver func(ctx context.Context, batchID uuid.UUID) (uuid.UUID, error)

// EscrowManualReview returns a hook that tells the batch vendor an escrow record ran
// out of automatic retries.
func (n *Notifier) EscrowManualReview(resolve VendorResolver) func(ctx context.Context, record models.EscrowRecord) {
	return func(ctx context.Context, record models.EscrowRecord) {
		vendorID, err := resolve(ctx, record.BatchID)
		if err != nil {
			n.logg.Error(n.logg.WithBatchID(ctx, record.BatchID.String()), "resolve vendor for manual review notice", err)
			return
		}
		recordID := record.ID
		orderID := record.OrderID
		lastError := ""
		if record.LastError != nil {
			lastError = *record.LastError
		}
		n.Notify(ctx, vendorID, enums.NotificationEscrowManualReview, Payload{
			BatchID:  record.BatchID,
			OrderID:  &orderID,
			EscrowID: &recordID,
			Data: map[string]any{
				"state":      string(record.State),
				"attempts":   record.Attempts,
				"last_error": lastError,
			},
		})
	}
}
