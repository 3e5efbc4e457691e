package http

import (
	"net/http"
)

type RouterConfig struct {
	Availability *AvailabilityHandler
	TechCapacity *TechCapacityHandler
	Conflicts    *ConflictHandler
	Middleware   []func(http.Handler) http.Handler
}

// NewRouter registers the engine endpoints. Method mismatches are answered
// with 405 by the mux.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if cfg.Availability != nil {
		mux.HandleFunc("POST /availability", cfg.Availability.Check)
		mux.HandleFunc("GET /spaces/{id}/occupancy", cfg.Availability.Occupancy)
	}

	if cfg.TechCapacity != nil {
		mux.HandleFunc("POST /tech-capacity/check", cfg.TechCapacity.Check)
		mux.HandleFunc("GET /tech-capacity", cfg.TechCapacity.Blocks)
		mux.HandleFunc("GET /tech-capacity/events", cfg.TechCapacity.Events)
	}

	if cfg.Conflicts != nil {
		mux.HandleFunc("POST /events/{id}/displace", cfg.Conflicts.Displace)
		mux.HandleFunc("GET /events/{id}/conflicts", cfg.Conflicts.ListOpen)
		mux.HandleFunc("GET /conflicts/{code}", cfg.Conflicts.Get)
		mux.HandleFunc("POST /conflicts/{code}/decision", cfg.Conflicts.Decide)
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}
