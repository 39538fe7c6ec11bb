package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fastprodman/propledger/internal/auth"
	"github.com/fastprodman/propledger/internal/infra/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Deps is everything the router needs. Metrics may be nil.
type Deps struct {
	Service     Service
	Verifier    auth.Verifier
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	CORSOrigins []string
}

// NewRouter constructs a chi router with all API endpoints registered.
func NewRouter(d Deps) http.Handler {
	h := NewHandler(d.Service, d.Verifier, d.Logger)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Property"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))

		r.Post("/purchase", h.PurchaseHandler)
		r.Get("/properties/{propertyId}", h.GetPropertyHandler)
		r.Get("/properties/{propertyId}/sales", h.ListSalesHandler)
		r.Get("/accounts/me", h.GetAccountHandler)
	})

	return r
}
