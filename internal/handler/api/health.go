package api

import (
	"context"
	"net/http"
	"time"

	"github.com/nexustechhub/mdts/internal/handler"
	"github.com/nexustechhub/mdts/internal/middleware"
)

// Pinger is a dependency that can report its liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports the status of the service and its dependencies.
type HealthHandler struct {
	checks  map[string]Pinger
	timeout time.Duration
}

// NewHealthHandler creates a HealthHandler. Nil checks are skipped.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	active := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			active[name] = p
		}
	}
	return &HealthHandler{checks: active, timeout: 2 * time.Second}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health handles GET /health. Any failing dependency turns the answer into
// 503 so load balancers stop routing to the instance.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK

	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			middleware.GetLogger(r.Context()).Warn("health check failed", "check", name, "error", err)
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	w.Header().Set("Cache-Control", "no-store")
	handler.JSON(w, status, resp)
}
