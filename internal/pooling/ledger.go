package pooling

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/pagination"
)

// OrderPage is one page of a batch ledger.
type OrderPage struct {
	Orders     []models.Order
	NextCursor string
}

// ListBatchOrders pages through the ledger of a batch in placement order.
func (s *Service) ListBatchOrders(ctx context.Context, batchID uuid.UUID, params pagination.Params) (*OrderPage, error) {
	if _, err := s.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		anchor, err := s.orders.FindByID(ctx, cursor.OrderID)
		if err != nil || anchor.BatchID != batchID || anchor.Sequence != cursor.Sequence {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cursor does not belong to this batch")
		}
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.orders.ListByBatchAfter(ctx, batchID, cursor.After(), pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	page := &OrderPage{Orders: rows}
	if len(rows) > limit {
		page.Orders = rows[:limit]
		last := page.Orders[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{Sequence: last.Sequence, OrderID: last.ID})
	}
	return page, nil
}
