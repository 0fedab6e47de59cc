package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the router. Everything under /api runs behind the
// tenant-context middleware; the admin subtree additionally requires an
// actor identity for the audit trail.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Tenant-ID", "X-Actor"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Use(TenantContext)

		r.Post("/consent", h.PostConsent)
		r.Get("/consent", h.GetConsentStates)
		r.Get("/benchmark", h.GetBenchmark)
		r.Get("/forecast", h.GetForecast)
		r.Get("/churn", h.GetChurn)
		r.Get("/privacy-report", h.GetPrivacyReport)

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireActor)
			r.Post("/budget-reset", h.PostBudgetReset)
		})
	})

	return r
}
