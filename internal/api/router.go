package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	mw "github.com/avoss/meetscribe/internal/api/middleware"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler    http.HandlerFunc
	ProcessHandler   http.HandlerFunc
	StatusHandler    http.HandlerFunc
	ResultsHandler   http.HandlerFunc
	SummarizeHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
// Health is the only unauthenticated route.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/health", deps.HealthHandler)

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Require)
		r.Use(deps.RateLimit.Limit)

		r.Post("/process", deps.ProcessHandler)
		r.Get("/status/{jobID}", deps.StatusHandler)
		r.Get("/results/{jobID}", deps.ResultsHandler)
		r.Post("/summarize/{jobID}", deps.SummarizeHandler)
	})

	return r
}
