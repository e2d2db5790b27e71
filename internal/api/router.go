package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates and returns the main HTTP router.
func NewRouter(dev Device, p Poller, bus EventBus) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware)
	r.Use(middleware.CleanPath)

	h := &Handlers{dev: dev, poller: p, events: bus}

	// System state
	r.Get("/api", h.getStatus)
	r.Get("/api/", h.getStatus)
	r.Get("/api/status", h.getStatus)

	// Sensors
	r.Get("/api/sensors", h.getSensors)
	r.Get("/api/sensors/freqs", h.getFrequencies)
	r.Get("/api/sensors/temps", h.getTemperatures)
	r.Get("/api/sensors/power", h.getPower)
	r.Get("/api/sensors/caps", h.getCaps)
	r.Post("/api/refresh", h.forceRefresh)

	// Controls
	r.Get("/api/interval", h.getInterval)
	r.Put("/api/interval", h.setInterval)
	r.Get("/api/powercap", h.getPowerCap)
	r.Put("/api/powercap", h.setPowerCap)
	r.Get("/api/online", h.getOnline)
	r.Put("/api/online", h.setOnline)

	// SSE
	r.Get("/api/subscribe", h.sseEvents)

	return r
}

// corsMiddleware adds permissive CORS headers for local network access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
