package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/groupbuy-backend/api/controllers"
	"github.com/angelmondragon/groupbuy-backend/api/middleware"
	"github.com/angelmondragon/groupbuy-backend/pkg/clock"
	"github.com/angelmondragon/groupbuy-backend/pkg/config"
	"github.com/angelmondragon/groupbuy-backend/pkg/db"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/redis"
)

// RedisStore is the subset of the redis client used by HTTP middleware.
type RedisStore interface {
	redis.IdempotencyStore
	redis.Pinger
	middleware.CounterStore
}

type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    RedisStore
	Pooling  controllers.PoolingService
	Gatherer prometheus.Gatherer
	Clock    clock.Clock
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.API.CORSOrigins),
	)

	var (
		idempotencyStore redis.IdempotencyStore
		counterStore     middleware.CounterStore
	)
	deps := map[string]controllers.Pinger{}
	if p.DB != nil {
		deps["db"] = p.DB
	}
	if p.Redis != nil {
		idempotencyStore = p.Redis
		counterStore = p.Redis
		deps["redis"] = p.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	if !cfg.App.IsProd() {
		r.Post("/api/dev/v1/token", controllers.DevToken(cfg.JWT, p.Clock, logg))
	}

	orderPolicy := middleware.NewRateLimitPolicy("orders", cfg.API.OrderRateWindow, cfg.API.OrderRateLimit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Clock, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		vendor := middleware.RequireRole(logg, enums.UserRoleVendor)
		staff := middleware.RequireRole(logg, enums.UserRoleVendor, enums.UserRoleHelper)
		customer := middleware.RequireRole(logg, enums.UserRoleCustomer)
		members := middleware.RequireRole(logg, enums.UserRoleVendor, enums.UserRoleCustomer, enums.UserRoleHelper)

		r.Route("/listings", func(r chi.Router) {
			r.With(vendor).Post("/", controllers.CreateListing(p.Pooling, logg))
			r.With(members).Get("/{listingId}", controllers.GetListing(p.Pooling, logg))
			r.With(vendor).Post("/{listingId}/batches", controllers.CreateBatch(p.Pooling, logg))
		})

		r.Route("/batches/{batchId}", func(r chi.Router) {
			r.Get("/", controllers.GetBatch(p.Pooling, logg))
			r.With(vendor).Patch("/", controllers.UpdateDraftBatch(p.Pooling, logg))
			r.With(vendor).Post("/activate", controllers.ActivateBatch(p.Pooling, logg))
			r.With(vendor).Post("/cancel", controllers.CancelBatch(p.Pooling, logg))
			r.With(vendor).Post("/deliver", controllers.MarkDelivered(p.Pooling, logg))
			r.With(staff).Get("/orders", controllers.ListBatchOrders(p.Pooling, logg))
			r.With(customer, middleware.RateLimit(orderPolicy, counterStore, logg)).Post("/orders", controllers.PlaceOrder(p.Pooling, logg))
		})

		r.With(staff).Post("/orders/{orderId}/fulfillment", controllers.AdvanceFulfillment(p.Pooling, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Clock, logg))
		if cfg.App.IsProd() {
			r.Use(middleware.RequireRole(logg))
		} else {
			r.Use(middleware.RequireRole(logg, enums.UserRoleVendor))
		}
		r.Post("/resolution/sweep", controllers.AdminRunSweep(p.Pooling, p.Clock, logg))
	})

	return r
}
