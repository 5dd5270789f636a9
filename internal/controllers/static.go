package controllers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthController answers liveness probes.
type HealthController struct {
	checks map[string]HealthChecker
	logger *zap.Logger
}

func NewHealthController(checks map[string]HealthChecker, logger *zap.Logger) *HealthController {
	return &HealthController{checks: checks, logger: logger.Named("health")}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HealthCheck returns {"status":"ok"} when every dependency answers.
// GET /healthz
func (c *HealthController) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok"}
	status := http.StatusOK
	for name, check := range c.checks {
		if err := check.Health(ctx); err != nil {
			c.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			if resp.Checks == nil {
				resp.Checks = make(map[string]string)
			}
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}
