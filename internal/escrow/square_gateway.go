package escrow

import (
	"context"
	"errors"

	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/groupbuy-backend/pkg/square"
)

type squarePayments interface {
	AuthorizePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
	CompletePayment(ctx context.Context, paymentID string) (*sq.Payment, error)
	CancelPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
	CancelPaymentByIdempotencyKey(ctx context.Context, idempotencyKey string) error
}

// SquareGateway authorizes with delayed capture and settles through Complete/Cancel.
type SquareGateway struct {
	client squarePayments
}

func NewSquareGateway(client squarePayments) (*SquareGateway, error) {
	if client == nil {
		return nil, errors.New("square client required")
	}
	return &SquareGateway{client: client}, nil
}

func (g *SquareGateway) Authorize(ctx context.Context, req AuthorizeRequest) (string, error) {
	if err := validateAuthorize(req); err != nil {
		return "", err
	}
	payment, err := g.client.AuthorizePayment(ctx, square.PaymentCreateParams{
		AmountCents:    req.AmountCents,
		Currency:       string(req.Currency),
		SourceID:       req.SourceID,
		IdempotencyKey: req.IdempotencyKey,
		ReferenceID:    req.ReferenceID,
		Note:           req.Note,
	})
	if err != nil {
		return "", err
	}
	if payment == nil || payment.GetID() == nil || *payment.GetID() == "" {
		return "", errors.New("square returned no payment id")
	}
	return *payment.GetID(), nil
}

func (g *SquareGateway) Capture(ctx context.Context, reference string) error {
	_, err := g.client.CompletePayment(ctx, reference)
	return err
}

func (g *SquareGateway) Void(ctx context.Context, reference string) error {
	_, err := g.client.CancelPayment(ctx, reference)
	return err
}

func (g *SquareGateway) VoidByIdempotencyKey(ctx context.Context, idempotencyKey string) error {
	return g.client.CancelPaymentByIdempotencyKey(ctx, idempotencyKey)
}
