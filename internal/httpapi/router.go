package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kitbuilder587/abn-search/internal/metrics"
	"github.com/kitbuilder587/abn-search/internal/query"
	"github.com/kitbuilder587/abn-search/internal/ratelimit"
	"github.com/kitbuilder587/abn-search/internal/service"
)

// Pinger - то, что проверяет /health (пул БД).
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Search  service.SearchService
	DB      Pinger
	Web     *query.Client
	Limiter *ratelimit.Limiter
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// nil - prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer
	// таймаут на запрос, 0 - 30s
	RequestTimeout time.Duration
}

type Handler struct {
	search   service.SearchService
	db       Pinger
	web      *query.Client
	limiter  *ratelimit.Limiter
	logger   *zap.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	timeout  time.Duration
}

func New(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.RequestTimeout == 0 {
		deps.RequestTimeout = 30 * time.Second
	}

	return &Handler{
		search:   deps.Search,
		db:       deps.DB,
		web:      deps.Web,
		limiter:  deps.Limiter,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		gatherer: deps.Gatherer,
		timeout:  deps.RequestTimeout,
	}
}

// NewRouter собирает chi роутер со всеми маршрутами.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(markLoopback)
	r.Use(chimw.RealIP)
	r.Use(h.recoverer)
	r.Use(h.requestLogger)
	r.Use(h.instrument)

	h.Register(r)
	return r
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.HandlerFor(h.gatherer))

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(h.timeout))
		r.Use(h.rateLimit)

		r.Route("/api", func(r chi.Router) {
			r.Get("/search", h.handleSearch)
			r.Get("/abn/{abn}", h.handleLookup)
		})

		if h.web != nil {
			r.Get("/", h.handleIndex)
			r.Get("/search", h.handleSearchPage)
			r.Post("/search/retry", h.handleRetry)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":      "not_found",
			"message":    "Route not found",
			"statusCode": http.StatusNotFound,
		})
	})
}
