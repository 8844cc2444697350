package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nominahq/payslip-service/internal/api/handlers"
	"github.com/nominahq/payslip-service/internal/api/middleware"
	"github.com/nominahq/payslip-service/internal/audit"
	"github.com/nominahq/payslip-service/internal/auth"
	"github.com/nominahq/payslip-service/internal/batch"
	"github.com/nominahq/payslip-service/internal/cache"
	"github.com/nominahq/payslip-service/internal/config"
	"github.com/nominahq/payslip-service/internal/ocr"
	"github.com/nominahq/payslip-service/internal/publication"
	"github.com/nominahq/payslip-service/internal/queue"
	"github.com/nominahq/payslip-service/internal/registry"
	"github.com/nominahq/payslip-service/internal/review"
	"github.com/nominahq/payslip-service/internal/storage"
)

type Router struct {
	mux   *chi.Mux
	db    *pgxpool.Pool
	redis *redis.Client
	cfg   *config.Config
	jwt   *auth.JWTMiddleware
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	return &Router{
		mux:   chi.NewRouter(),
		db:    db,
		redis: rdb,
		cfg:   cfg,
		jwt:   auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Services
	store := storage.NewSupabaseStorage(rt.cfg.Storage.SupabaseURL, rt.cfg.Storage.SupabaseKey)
	batchStore := batch.NewStore(rt.db)
	reg := registry.NewStore(rt.db)
	queueClient := queue.NewClient(rt.cfg.Redis)
	splitter := ocr.NewHTTPSplitter(rt.cfg.OCR.SplitterURL)

	batchSvc := batch.NewService(batchStore, store, splitter, queueClient,
		rt.cfg.Storage.Bucket, rt.cfg.OCR.CallbackURL)
	reviewQueue := review.NewQueue(rt.db, batchStore, reg, rt.cfg.Review.PageSize)
	pub := publication.NewController(batchStore, reg, queueClient)

	previewTTL := time.Duration(rt.cfg.Storage.PreviewTTLSecs) * time.Second
	previews := cache.NewPreviewURLs(rt.redis, previewTTL)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Authenticate)

		batchH := handlers.NewBatchHandler(batchSvc, pub, reviewQueue)
		r.Route("/batches", func(r chi.Router) {
			r.Post("/", batchH.Upload)
			r.Get("/", batchH.List)
			r.Get("/{id}", batchH.Get)
			r.Post("/{id}/items", batchH.IngestItem)
			r.Get("/{id}/items", batchH.ListItems)
			r.Post("/{id}/cancel", batchH.Cancel)
			r.Post("/{id}/revoke", batchH.Revoke)
		})

		itemH := handlers.NewItemHandler(batchSvc, reviewQueue, pub, audit.NewTrail(rt.db),
			store, previews, rt.cfg.Storage.Bucket, previewTTL)
		r.Route("/items", func(r chi.Router) {
			r.Post("/skip", itemH.SkipMany)
			r.Get("/{id}", itemH.Get)
			r.Post("/{id}/assign", itemH.Assign)
			r.Post("/{id}/skip", itemH.Skip)
			r.Post("/{id}/publish", itemH.Publish)
			r.Post("/{id}/revoke", itemH.Revoke)
			r.Post("/{id}/resubmit", itemH.Resubmit)
			r.Get("/{id}/events", itemH.Events)
			r.Get("/{id}/preview", itemH.Preview)
		})

		employeeH := handlers.NewEmployeeHandler(reg)
		r.Get("/employees/search", employeeH.Search)
	})

	return r
}
