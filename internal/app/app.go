// Package app assembles the group-buy engine from configuration so every binary
// runs the same service graph.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/groupbuy-backend/internal/batches"
	"github.com/angelmondragon/groupbuy-backend/internal/escrow"
	"github.com/angelmondragon/groupbuy-backend/internal/guard"
	"github.com/angelmondragon/groupbuy-backend/internal/listings"
	"github.com/angelmondragon/groupbuy-backend/internal/notifications"
	"github.com/angelmondragon/groupbuy-backend/internal/orders"
	"github.com/angelmondragon/groupbuy-backend/internal/pooling"
	"github.com/angelmondragon/groupbuy-backend/pkg/clock"
	"github.com/angelmondragon/groupbuy-backend/pkg/config"
	"github.com/angelmondragon/groupbuy-backend/pkg/db"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/metrics"
	"github.com/angelmondragon/groupbuy-backend/pkg/outbox"
	"github.com/angelmondragon/groupbuy-backend/pkg/square"
)

type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Redis      guard.RedisStore
	Registerer prometheus.Registerer
	Clock      clock.Clock
	// Gateway overrides the configured payment provider.
	Gateway escrow.Gateway
}

// App is the wired service graph.
type App struct {
	Pooling *pooling.Service
	Escrow  *escrow.Coordinator
	Outbox  *outbox.Repository
	Clock   clock.Clock
}

func New(ctx context.Context, p Params) (*App, error) {
	switch {
	case p.Config == nil:
		return nil, errors.New("config required")
	case p.Logger == nil:
		return nil, errors.New("logger required")
	case p.DB == nil:
		return nil, errors.New("db required")
	}
	cfg, logg := p.Config, p.Logger

	reg := p.Registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}

	gateway := p.Gateway
	if gateway == nil {
		var err error
		if gateway, err = newGateway(ctx, cfg, logg); err != nil {
			return nil, err
		}
	}

	g, err := guard.New(cfg.Guard, p.Redis, logg)
	if err != nil {
		return nil, fmt.Errorf("build guard: %w", err)
	}

	conn := p.DB.DB()
	outboxRepo := outbox.NewRepository(conn)
	notifier, err := notifications.NewNotifier(p.DB, outbox.NewService(outboxRepo, logg), logg)
	if err != nil {
		return nil, fmt.Errorf("build notifier: %w", err)
	}

	ordersRepo := orders.NewRepository(conn)

	// The manual review hook resolves vendors through the pooling service, which
	// itself depends on the coordinator.
	var svc *pooling.Service
	resolveVendor := func(ctx context.Context, batchID uuid.UUID) (uuid.UUID, error) {
		if svc == nil {
			return uuid.Nil, errors.New("pooling service not ready")
		}
		return svc.VendorForBatch(ctx, batchID)
	}

	coord, err := escrow.NewCoordinator(escrow.CoordinatorParams{
		DB:             p.DB,
		Repository:     escrow.NewRepository(conn),
		Orders:         ordersRepo,
		Gateway:        gateway,
		Guard:          g,
		Policy:         escrow.RetryPolicyFromConfig(cfg.Escrow),
		HoldTimeout:    cfg.Escrow.HoldTimeout,
		SettleLimit:    cfg.Resolution.SettleBatch,
		Metrics:        metrics.NewEscrowMetrics(reg),
		Clock:          clk,
		Logger:         logg,
		OnManualReview: notifier.EscrowManualReview(resolveVendor),
	})
	if err != nil {
		return nil, fmt.Errorf("build escrow coordinator: %w", err)
	}

	svc, err = pooling.NewService(pooling.ServiceParams{
		DB:         p.DB,
		Listings:   listings.NewRepository(conn),
		Batches:    batches.NewRepository(conn),
		Orders:     ordersRepo,
		Escrow:     coord,
		Guard:      g,
		Notifier:   notifier,
		Clock:      clk,
		Metrics:    metrics.NewResolutionMetrics(reg),
		Logger:     logg,
		SweepLimit: cfg.Resolution.SettleBatch,
	})
	if err != nil {
		return nil, fmt.Errorf("build pooling service: %w", err)
	}

	return &App{Pooling: svc, Escrow: coord, Outbox: outboxRepo, Clock: clk}, nil
}

func newGateway(ctx context.Context, cfg *config.Config, logg *logger.Logger) (escrow.Gateway, error) {
	if !cfg.Payments.UsesSquare() {
		logg.Warn(ctx, "using simulated payment gateway")
		return escrow.NewSimulatedGateway(), nil
	}
	client, err := square.NewClient(ctx, cfg.Square, logg)
	if err != nil {
		return nil, fmt.Errorf("build square client: %w", err)
	}
	logg.Info(logg.WithField(ctx, "square_env", client.Environment()), "using square payment gateway")
	return escrow.NewSquareGateway(client)
}
