package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warrantyvault/backend/api/controllers"
	"github.com/warrantyvault/backend/api/middleware"
	"github.com/warrantyvault/backend/internal/owners"
	"github.com/warrantyvault/backend/internal/uploads"
	"github.com/warrantyvault/backend/internal/warranties"
	"github.com/warrantyvault/backend/pkg/config"
	"github.com/warrantyvault/backend/pkg/db"
	"github.com/warrantyvault/backend/pkg/logger"
	"github.com/warrantyvault/backend/pkg/redis"
	"github.com/warrantyvault/backend/pkg/storage/gcs"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient db.Pinger,
	redisClient *redis.Client,
	gcsClient gcs.Pinger,
	metricsRegistry *prometheus.Registry,
	ownerService owners.Service,
	warrantyService warranties.Service,
	uploadService uploads.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbClient, redisClient, gcsClient))
	})

	if metricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
	}

	uploadPolicy := middleware.RateLimitPolicy{
		Name:   "upload",
		Limit:  cfg.Upload.RateLimit,
		Window: cfg.Upload.RateLimitWindow,
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, ownerService, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/v1/warranties", func(r chi.Router) {
			r.With(middleware.RateLimit(uploadPolicy, redisClient, logg)).
				Post("/upload", controllers.WarrantyUpload(uploadService, cfg.Upload.MaxUploadBytes(), logg))
			r.Post("/", controllers.WarrantyCreate(warrantyService, logg))
			r.Get("/", controllers.WarrantyList(warrantyService, logg))
			r.Get("/{warrantyId}", controllers.WarrantyDetail(warrantyService, logg))
			r.Patch("/{warrantyId}", controllers.WarrantyUpdate(warrantyService, logg))
			r.Delete("/{warrantyId}", controllers.WarrantyDelete(warrantyService, logg))
		})
	})

	return r
}
