package controller

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

type HealthController struct {
	store      string
	dependency Pinger
}

// NewHealthController accepts a nil pinger for stores with nothing to ping.
func NewHealthController(store string, pinger Pinger) *HealthController {
	return &HealthController{store: store, dependency: pinger}
}

// RegisterRoutes leaves /health unauthenticated for load balancer health checks.
func (c *HealthController) RegisterRoutes(mux *http.ServeMux, _ func(http.Handler) http.Handler) {
	mux.HandleFunc("/health", c.health)
}

func (c *HealthController) health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if c.dependency != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := c.dependency.PingContext(ctx); err != nil {
			logError(r, err, nil)
			writeFailure[HealthResponse](w, r, http.StatusServiceUnavailable, start, "ledger store unreachable", err.Error())
			return
		}
	}

	writeSuccess(w, r, http.StatusOK, "ok", HealthResponse{Status: "UP", Store: c.store}, start)
}
