package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/api/responses"
	pkgAuth "github.com/angelmondragon/groupbuy-backend/pkg/auth"
	"github.com/angelmondragon/groupbuy-backend/pkg/clock"
	"github.com/angelmondragon/groupbuy-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the claims.
// Expiry is checked against clk, the same clock tokens are minted from.
func Auth(cfg config.JWTConfig, clk clock.Clock, logg *logger.Logger) func(http.Handler) http.Handler {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, clk.Now(), token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithRole(r.Context(), claims.Role)
			userID := ""
			if claims.UserID != uuid.Nil {
				userID = claims.UserID.String()
				ctx = WithUserID(ctx, userID)
			}

			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"user_id":    userID,
					"actor_role": string(claims.Role),
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
