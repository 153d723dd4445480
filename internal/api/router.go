package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	mw "github.com/dromeas/triage/internal/api/middleware"
	"github.com/dromeas/triage/internal/api/response"
	"github.com/dromeas/triage/pkg/models"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler    http.HandlerFunc
	ClassifyHandler  http.HandlerFunc
	ConsensusHandler http.HandlerFunc
	AskHandler       http.HandlerFunc
	IngestEmail      http.HandlerFunc
	ListEmails       http.HandlerFunc
	GetEmail         http.HandlerFunc
	TriageEmail      http.HandlerFunc
	AskEmail         http.HandlerFunc
	PollJobHandler   http.HandlerFunc
	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(models.ScopeRead))

			r.Get("/api/v1/emails", orNotImplemented(deps.ListEmails))
			r.Get("/api/v1/emails/{emailID}", orNotImplemented(deps.GetEmail))
			r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.PollJobHandler))
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(models.ScopeTriage))

			r.Post("/api/v1/classify", orNotImplemented(deps.ClassifyHandler))
			r.Post("/api/v1/classify/consensus", orNotImplemented(deps.ConsensusHandler))
			r.Post("/api/v1/ask", orNotImplemented(deps.AskHandler))
			r.Post("/api/v1/emails", orNotImplemented(deps.IngestEmail))
			r.Post("/api/v1/emails/{emailID}/triage", orNotImplemented(deps.TriageEmail))
			r.Post("/api/v1/emails/{emailID}/ask", orNotImplemented(deps.AskEmail))
		})

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(models.ScopeAdmin))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
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
