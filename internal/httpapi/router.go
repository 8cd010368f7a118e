// Package httpapi exposes the resolver and session issuer over HTTP.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/ucenter-gateway/internal/identity"
	"github.com/dmitrijs2005/ucenter-gateway/internal/logging"
	"github.com/dmitrijs2005/ucenter-gateway/internal/metrics"
	"github.com/dmitrijs2005/ucenter-gateway/internal/session"
)

type Handler struct {
	resolver *identity.Resolver
	issuer   *session.Issuer
	metrics  *metrics.Metrics
	log      logging.Logger
}

type Option func(*Handler)

func WithLogger(l logging.Logger) Option { return func(h *Handler) { h.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(h *Handler) { h.metrics = m } }

// NewHandler builds the HTTP adapter. issuer may be nil, in which case the
// session and binding routes answer 501.
func NewHandler(resolver *identity.Resolver, issuer *session.Issuer, opts ...Option) *Handler {
	h := &Handler{resolver: resolver, issuer: issuer, log: logging.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.recoverMiddleware)
	r.Use(h.loggingMiddleware)

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/login", h.login)
		r.Post("/login/identifier", h.loginIdentifier)
		r.Post("/register", h.register)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware)
			r.Get("/session", h.session)
			r.Get("/bindings/{uid}", h.listBindings)
			r.Put("/bindings/{uid}/{type}", h.putBinding)
			r.Delete("/bindings/{uid}/{type}", h.deleteBinding)
		})
	})

	return r
}
