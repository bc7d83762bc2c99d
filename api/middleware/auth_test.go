package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/pkg/auth"
	"github.com/angelmondragon/groupbuy-backend/pkg/clock"
	"github.com/angelmondragon/groupbuy-backend/pkg/config"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWT, nil, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWT, nil, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsForeignIssuer(t *testing.T) {
	other := testJWT
	other.Issuer = "someone-else"
	token := mintTestToken(t, other, uuid.New(), enums.UserRoleVendor)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	Auth(testJWT, nil, nil)(okHandler()).ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthSeedsActor(t *testing.T) {
	userID := uuid.New()
	token := mintTestToken(t, testJWT, userID, enums.UserRoleCustomer)

	var (
		gotID   uuid.UUID
		gotRole enums.UserRole
		gotOK   bool
	)
	handler := Auth(testJWT, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, gotRole, gotOK = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !gotOK || gotID != userID || gotRole != enums.UserRoleCustomer {
		t.Fatalf("unexpected actor %s %s %v", gotID, gotRole, gotOK)
	}
}

func TestAuthAcceptsGuestWithoutUser(t *testing.T) {
	token := mintTestToken(t, testJWT, uuid.Nil, enums.UserRoleGuest)

	var gotRole enums.UserRole
	var gotOK bool
	handler := Auth(testJWT, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, gotRole, gotOK = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || gotRole != enums.UserRoleGuest || !gotOK {
		t.Fatalf("expected guest actor, got %d %s %v", resp.Code, gotRole, gotOK)
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name string
		role enums.UserRole
		want int
	}{
		{"allowed vendor", enums.UserRoleVendor, http.StatusOK},
		{"allowed helper", enums.UserRoleHelper, http.StatusOK},
		{"ops bypass", enums.UserRoleOps, http.StatusOK},
		{"customer rejected", enums.UserRoleCustomer, http.StatusForbidden},
		{"anonymous rejected", "", http.StatusForbidden},
	}
	handler := RequireRole(nil, enums.UserRoleVendor, enums.UserRoleHelper)(okHandler())

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.role != "" {
			req = req.WithContext(WithRole(req.Context(), tt.role))
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != tt.want {
			t.Fatalf("%s: expected %d got %d", tt.name, tt.want, resp.Code)
		}
	}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, userID uuid.UUID, role enums.UserRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{UserID: userID, Role: role})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestAuthChecksExpiryAgainstClock(t *testing.T) {
	minted := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token, err := auth.MintAccessToken(testJWT, minted, auth.AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleCustomer})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	clk := clock.NewManual(minted.Add(10 * time.Minute))
	handler := Auth(testJWT, clk, nil)(okHandler())

	serve := func() int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		return resp.Code
	}
	if code := serve(); code != http.StatusOK {
		t.Fatalf("expected 200 inside the token window, got %d", code)
	}
	clk.Advance(2 * time.Hour)
	if code := serve(); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after expiry, got %d", code)
	}
}
