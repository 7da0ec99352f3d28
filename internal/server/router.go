package server

import (
	"net/http"

	"github.com/martinpickett/Plex-Tools/internal/platform/logger"
	"github.com/martinpickett/Plex-Tools/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// NewRouter wires the handler into a chi router with request logging and,
// when m is non-nil, request metrics and GET /metrics.
func NewRouter(h *Handler, log logrus.FieldLogger, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	if m != nil {
		r.Use(metrics.RequestMiddleware(m))
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Get("/health", h.Health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/menu", h.Menu)
		r.Post("/buffer", h.Buffer)
		r.Post("/rate", h.Rate)
		r.Post("/batch", h.Batch)
	})
	return r
}
