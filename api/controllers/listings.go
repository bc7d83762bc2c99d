package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/api/responses"
	"github.com/angelmondragon/groupbuy-backend/api/validators"
	"github.com/angelmondragon/groupbuy-backend/internal/pooling"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

const maxTitleLength = 200

type createListingRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=4000"`
	Currency    string  `json:"currency,omitempty" validate:"omitempty,len=3"`
	VendorID    *string `json:"vendor_id,omitempty" validate:"omitempty,uuid"`
}

// CreateListing registers a listing for the calling vendor. Ops callers must name the vendor.
func CreateListing(svc PoolingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createListingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		vendorID := actor.UserID
		if actor.Role == enums.UserRoleOps {
			if payload.VendorID == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "vendor_id is required for ops callers"))
				return
			}
			if vendorID, err = uuid.Parse(*payload.VendorID); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid vendor_id"))
				return
			}
		}

		listing, err := svc.CreateListing(r.Context(), pooling.CreateListingInput{
			VendorID:    vendorID,
			Title:       validators.SanitizeString(payload.Title, maxTitleLength),
			Description: payload.Description,
			Currency:    enums.Currency(strings.ToUpper(strings.TrimSpace(payload.Currency))),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newListingResponse(listing))
	}
}

func GetListing(svc PoolingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listingID, err := pathUUID(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listing, err := svc.GetListing(r.Context(), listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		batches, err := svc.ListBatches(r.Context(), listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"listing": newListingResponse(listing),
			"batches": newBatchResponses(batches),
		})
	}
}
