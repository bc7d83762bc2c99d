package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/api/responses"
	"github.com/angelmondragon/groupbuy-backend/api/validators"
	"github.com/angelmondragon/groupbuy-backend/pkg/auth"
	"github.com/angelmondragon/groupbuy-backend/pkg/clock"
	"github.com/angelmondragon/groupbuy-backend/pkg/config"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

// AdminRunSweep triggers one resolution sweep at the current clock time.
func AdminRunSweep(svc PoolingService, clk clock.Clock, logg *logger.Logger) http.HandlerFunc {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.RunResolutionSweep(r.Context(), clk.Now())
		if err != nil && result == nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err != nil {
			logg.Error(r.Context(), "admin sweep finished with errors", err)
		}
		responses.WriteSuccess(w, newSweepResponse(result))
	}
}

type devTokenRequest struct {
	UserID string `json:"user_id,omitempty" validate:"omitempty,uuid"`
	Role   string `json:"role" validate:"required"`
}

// DevToken mints an access token for local testing. Mounted only outside prod.
func DevToken(cfg config.JWTConfig, clk clock.Clock, logg *logger.Logger) http.HandlerFunc {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var payload devTokenRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		role, err := enums.ParseUserRole(strings.TrimSpace(payload.Role))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
			return
		}

		userID := uuid.Nil
		if payload.UserID != "" {
			userID = uuid.MustParse(payload.UserID)
		} else if role != enums.UserRoleGuest {
			userID = uuid.New()
		}

		token, err := auth.MintAccessToken(cfg, clk.Now(), auth.AccessTokenPayload{UserID: userID, Role: role})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint token"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"access_token": token,
			"user_id":      userID,
			"role":         role,
		})
	}
}
