package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", g.handleHealth())

	if g.metrics != nil {
		r.Handle("/metrics", g.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", g.handleChat())
		r.Get("/transcript", g.handleTranscript())
		if g.config.ExposeDiagnostics {
			r.Get("/diagnostics", g.handleDiagnostics())
		}
	})

	r.Get("/ws/events", g.handleEvents)

	return r
}
