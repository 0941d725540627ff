package httpapi

import (
	"context"
	"net/http"
)

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthzHandler handles GET /healthz.
func HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler handles GET /readyz. It pings every named dependency and
// returns 503 with Retry-After when any of them fails.
func ReadyzHandler(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for name, p := range deps {
			if err := p.Ping(r.Context()); err != nil {
				w.Header().Set("Retry-After", "30")
				respondError(w, http.StatusServiceUnavailable, name+" unavailable")
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
