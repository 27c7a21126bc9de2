package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/jedilabs/paygate/internal/api/middleware"
	"github.com/jedilabs/paygate/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler       http.HandlerFunc
	AvailabilityHandler http.HandlerFunc
	InputSchemaHandler  http.HandlerFunc

	CreateProjectHandler http.HandlerFunc
	InteractHandler      http.HandlerFunc
	AnalyzeHandler       http.HandlerFunc

	SetupInfoHandler    http.HandlerFunc
	SetupSocialsHandler http.HandlerFunc
	SetupKarmaHandler   http.HandlerFunc
	SetupIPHandler      http.HandlerFunc

	StatusHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public discovery endpoints
	r.Get("/health", orNotImplemented(deps.HealthHandler))
	r.Get("/availability", orNotImplemented(deps.AvailabilityHandler))
	r.Get("/input_schema", orNotImplemented(deps.InputSchemaHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		// Paid actions
		r.Post("/create_project", orNotImplemented(deps.CreateProjectHandler))
		r.Post("/interact", orNotImplemented(deps.InteractHandler))
		r.Post("/analyze", orNotImplemented(deps.AnalyzeHandler))

		// Free once the project's creation payment settled
		r.Post("/setup_info", orNotImplemented(deps.SetupInfoHandler))
		r.Post("/setup_socials", orNotImplemented(deps.SetupSocialsHandler))
		r.Post("/setup_karma", orNotImplemented(deps.SetupKarmaHandler))
		r.Post("/setup_ip", orNotImplemented(deps.SetupIPHandler))

		r.Get("/status", orNotImplemented(deps.StatusHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
