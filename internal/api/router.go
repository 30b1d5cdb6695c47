package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// apiPrefix marks routes that answer in JSON rather than HTML.
const apiPrefix = "/api/"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Settings page
	r.Get("/", s.handleIndex)
	r.Post("/device-settings", s.handleDeviceSettings)
	r.Handle("/static/*", http.StripPrefix("/static", s.static))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/history", s.handleHistory)
		r.Get("/ws", s.handleWebSocket)
	})

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleNotFound)

	return r
}

// handleNotFound sends HTML clients back to the settings page and answers
// API clients with a JSON 404.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if isAPIRequest(r) {
		writeNotFound(w, "no such endpoint")
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, apiPrefix)
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
	}
	if s.bus != nil {
		resp["bus_connected"] = s.bus.IsConnected()
	}
	if s.coord.ShuttingDown() {
		resp["status"] = "shutting_down"
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStatus returns the current summary, aggregated on demand, in the
// same schema as the status topic.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.Current(s.registry))
}
