package escrow

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

// AuthorizeRequest describes an uncaptured payment for one order.
type AuthorizeRequest struct {
	IdempotencyKey string
	AmountCents    int64
	Currency       enums.Currency
	SourceID       string
	ReferenceID    string
	Note           string
}

// Gateway is the external payment capability. Every call is a network call that
// may be slow or fail transiently.
type Gateway interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (string, error)
	Capture(ctx context.Context, reference string) error
	Void(ctx context.Context, reference string) error
	VoidByIdempotencyKey(ctx context.Context, idempotencyKey string) error
}

// ToCents converts a decimal amount into the minor units gateways expect.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func validateAuthorize(req AuthorizeRequest) error {
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return errors.New("idempotency key required")
	}
	if req.AmountCents <= 0 {
		return errors.New("amount must be positive")
	}
	if strings.TrimSpace(req.SourceID) == "" {
		return errors.New("payment source required")
	}
	return nil
}
