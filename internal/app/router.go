package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/larder-erp/larder-erp/internal/alerts"
	"github.com/larder-erp/larder-erp/internal/brands"
	"github.com/larder-erp/larder-erp/internal/costing"
	"github.com/larder-erp/larder-erp/internal/pricing"
	"github.com/larder-erp/larder-erp/internal/recipes"
	"github.com/larder-erp/larder-erp/internal/stock"
	"github.com/larder-erp/larder-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	StockHandler   *stock.Handler
	BrandHandler   *brands.Handler
	PricingHandler *pricing.Handler
	RecipeHandler  *recipes.Handler
	CostingHandler *costing.Handler
	AlertHandler   *alerts.Handler
	JobHandler     *jobs.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/stock-items", func(r chi.Router) {
			params.StockHandler.MountRoutes(r)
			r.Route("/{id}/prices", params.PricingHandler.MountRoutes)
		})
		r.Route("/stock-movements", params.StockHandler.MountMovementRoutes)
		r.Route("/brands", params.BrandHandler.MountRoutes)
		r.Route("/products/{productID}", func(r chi.Router) {
			r.Route("/recipe", params.RecipeHandler.MountRoutes)
			params.CostingHandler.MountRoutes(r)
		})
		r.Route("/alerts", params.AlertHandler.MountRoutes)
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
