package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/angelmondragon/groupbuy-backend/api/responses"
	"github.com/angelmondragon/groupbuy-backend/api/validators"
	"github.com/angelmondragon/groupbuy-backend/internal/pooling"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/pagination"
)

type placeOrderRequest struct {
	Quantity        int    `json:"quantity" validate:"required,min=1,max=10000"`
	PaymentSourceID string `json:"payment_source_id" validate:"required,max=255"`
}

type advanceFulfillmentRequest struct {
	Status string `json:"status" validate:"required,oneof=shipped delivered"`
}

// PlaceOrder joins the calling customer to a batch.
func PlaceOrder(svc PoolingService, logg *logger.Logger) http.HandlerFunc {
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

		var payload placeOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.PlaceOrder(r.Context(), pooling.PlaceOrderInput{
			BatchID:         batchID,
			CustomerID:      actor.UserID,
			Quantity:        payload.Quantity,
			PaymentSourceID: strings.TrimSpace(payload.PaymentSourceID),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, placeOrderResponse{
			Order:          newOrderResponse(result.Order),
			Batch:          newBatchResponse(result.Batch),
			ReachedMinimum: result.ReachedMinimum,
		})
	}
}

// ListBatchOrders pages through a batch ledger with ?limit= and ?cursor=.
func ListBatchOrders(svc PoolingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID, err := pathUUID(r, "batchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListBatchOrders(r.Context(), batchID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderPageResponse{
			Orders:     newOrderResponses(page.Orders),
			NextCursor: page.NextCursor,
		})
	}
}

func pageParams(r *http.Request) (pagination.Params, error) {
	q := r.URL.Query()
	params := pagination.Params{Cursor: strings.TrimSpace(q.Get("cursor"))}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return params, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer")
		}
		params.Limit = limit
	}
	return params, nil
}

func AdvanceFulfillment(svc PoolingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload advanceFulfillmentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.AdvanceFulfillment(r.Context(), actor, orderID, enums.FulfillmentStatus(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}
