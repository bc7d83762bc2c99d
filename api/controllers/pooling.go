package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/api/middleware"
	"github.com/angelmondragon/groupbuy-backend/internal/pooling"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/pagination"
)

// PoolingService is the group-buy surface the HTTP handlers drive.
type PoolingService interface {
	CreateListing(ctx context.Context, in pooling.CreateListingInput) (*models.Listing, error)
	GetListing(ctx context.Context, listingID uuid.UUID) (*models.Listing, error)
	ListBatches(ctx context.Context, listingID uuid.UUID) ([]models.RegionalBatch, error)
	CreateBatch(ctx context.Context, actor pooling.Actor, in pooling.CreateBatchInput) (*models.RegionalBatch, error)
	GetBatch(ctx context.Context, batchID uuid.UUID) (*models.RegionalBatch, error)
	UpdateDraftBatch(ctx context.Context, actor pooling.Actor, batchID uuid.UUID, in pooling.UpdateDraftBatchInput) (*models.RegionalBatch, error)
	ActivateBatch(ctx context.Context, actor pooling.Actor, batchID uuid.UUID) (*models.RegionalBatch, error)
	CancelBatch(ctx context.Context, actor pooling.Actor, batchID uuid.UUID) (*models.RegionalBatch, error)
	MarkDelivered(ctx context.Context, actor pooling.Actor, batchID uuid.UUID) (*models.RegionalBatch, error)
	ListBatchOrders(ctx context.Context, batchID uuid.UUID, params pagination.Params) (*pooling.OrderPage, error)
	PlaceOrder(ctx context.Context, in pooling.PlaceOrderInput) (*pooling.PlaceOrderResult, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	AdvanceFulfillment(ctx context.Context, actor pooling.Actor, orderID uuid.UUID, target enums.FulfillmentStatus) (*models.Order, error)
	RunResolutionSweep(ctx context.Context, now time.Time) (*pooling.SweepResult, error)
}

func actorFromRequest(r *http.Request) (pooling.Actor, error) {
	userID, role, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return pooling.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return pooling.Actor{UserID: userID, Role: role}, nil
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+param).
			WithDetails(map[string]any{"field": param})
	}
	return id, nil
}
