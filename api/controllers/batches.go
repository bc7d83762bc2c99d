package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/groupbuy-backend/api/responses"
	"github.com/angelmondragon/groupbuy-backend/api/validators"
	"github.com/angelmondragon/groupbuy-backend/internal/pooling"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

type createBatchRequest struct {
	Region          string     `json:"region" validate:"required,max=120"`
	Price           string     `json:"price" validate:"required"`
	MinimumQuantity int        `json:"minimum_quantity" validate:"required,min=1"`
	CutoffDate      *time.Time `json:"cutoff_date" validate:"required"`
	DeliveryMethod  string     `json:"delivery_method" validate:"required,oneof=pickup_point direct_delivery"`
}

type updateBatchRequest struct {
	Price           *string    `json:"price,omitempty"`
	MinimumQuantity *int       `json:"minimum_quantity,omitempty" validate:"omitempty,min=1"`
	CutoffDate      *time.Time `json:"cutoff_date,omitempty"`
	DeliveryMethod  *string    `json:"delivery_method,omitempty" validate:"omitempty,oneof=pickup_point direct_delivery"`
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price").
			WithDetails(map[string]any{"field": "price"})
	}
	return price, nil
}

func (p updateBatchRequest) toInput() (pooling.UpdateDraftBatchInput, error) {
	var in pooling.UpdateDraftBatchInput
	if p.Price != nil {
		price, err := parsePrice(*p.Price)
		if err != nil {
			return in, err
		}
		in.Price = &price
	}
	in.MinimumQuantity = p.MinimumQuantity
	in.CutoffDate = p.CutoffDate
	if p.DeliveryMethod != nil {
		method := enums.DeliveryMethod(*p.DeliveryMethod)
		in.DeliveryMethod = &method
	}
	return in, nil
}

func CreateBatch(svc PoolingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listingID, err := pathUUID(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createBatchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		price, err := parsePrice(payload.Price)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batch, err := svc.CreateBatch(r.Context(), actor, pooling.CreateBatchInput{
			ListingID:       listingID,
			Region:          validators.SanitizeString(payload.Region, 120),
			Price:           price,
			MinimumQuantity: payload.MinimumQuantity,
			CutoffDate:      *payload.CutoffDate,
			DeliveryMethod:  enums.DeliveryMethod(payload.DeliveryMethod),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newBatchResponse(batch))
	}
}

func GetBatch(svc PoolingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID, err := pathUUID(r, "batchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		batch, err := svc.GetBatch(r.Context(), batchID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBatchResponse(batch))
	}
}

// UpdateDraftBatch applies a partial edit to a draft batch.
func UpdateDraftBatch(svc PoolingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		batchID, err := pathUUID(r, "batchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateBatchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		in, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batch, err := svc.UpdateDraftBatch(r.Context(), actor, batchID, in)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBatchResponse(batch))
	}
}

type batchAction func(ctx context.Context, actor pooling.Actor, batchID uuid.UUID) (*models.RegionalBatch, error)

// batchTransition serves the body-less lifecycle endpoints: activate, cancel and deliver.
func batchTransition(action batchAction, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		batchID, err := pathUUID(r, "batchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		batch, err := action(r.Context(), actor, batchID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBatchResponse(batch))
	}
}

func ActivateBatch(svc PoolingService, logg *logger.Logger) http.HandlerFunc {
	return batchTransition(svc.ActivateBatch, logg)
}

func CancelBatch(svc PoolingService, logg *logger.Logger) http.HandlerFunc {
	return batchTransition(svc.CancelBatch, logg)
}

func MarkDelivered(svc PoolingService, logg *logger.Logger) http.HandlerFunc {
	return batchTransition(svc.MarkDelivered, logg)
}
