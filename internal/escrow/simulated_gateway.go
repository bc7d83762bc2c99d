package escrow

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
)

// DeclinedSourcePrefix makes SimulatedGateway decline an authorization.
const DeclinedSourcePrefix = "decline"

type simulatedPayment struct {
	key   string
	state string
}

// SimulatedGateway approves every payment in memory. Used for local runs where no
// processor credentials exist.
type SimulatedGateway struct {
	mu       sync.Mutex
	payments map[string]*simulatedPayment
	byKey    map[string]string
}

func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{
		payments: map[string]*simulatedPayment{},
		byKey:    map[string]string{},
	}
}

func (g *SimulatedGateway) Authorize(ctx context.Context, req AuthorizeRequest) (string, error) {
	if err := validateAuthorize(req); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.HasPrefix(req.SourceID, DeclinedSourcePrefix) {
		return "", pkgerrors.New(pkgerrors.CodePaymentHoldFailed, "card declined")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if ref, ok := g.byKey[req.IdempotencyKey]; ok {
		return ref, nil
	}
	ref := "sim_" + uuid.NewString()
	g.payments[ref] = &simulatedPayment{key: req.IdempotencyKey, state: "approved"}
	g.byKey[req.IdempotencyKey] = ref
	return ref, nil
}

func (g *SimulatedGateway) Capture(_ context.Context, reference string) error {
	return g.settle(reference, "completed")
}

func (g *SimulatedGateway) Void(_ context.Context, reference string) error {
	return g.settle(reference, "canceled")
}

func (g *SimulatedGateway) VoidByIdempotencyKey(_ context.Context, idempotencyKey string) error {
	g.mu.Lock()
	ref, ok := g.byKey[idempotencyKey]
	g.mu.Unlock()
	if !ok {
		return nil
	}
	return g.settle(ref, "canceled")
}

// State returns the simulated processor state of a payment.
func (g *SimulatedGateway) State(reference string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.payments[reference]; ok {
		return p.state
	}
	return ""
}

func (g *SimulatedGateway) settle(reference, target string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[reference]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("payment %s not found", reference))
	}
	if p.state == target {
		return nil
	}
	if p.state != "approved" {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("payment %s is %s", reference, p.state))
	}
	p.state = target
	return nil
}
