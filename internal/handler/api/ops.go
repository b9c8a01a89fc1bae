package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	xhttp "YieldGuard/pkg/http"
	"YieldGuard/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// HealthCheck names a readiness probe over one backing dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsHandler serves the operational endpoints. The data plane has no public
// HTTP surface; consumers embed the usecase layer directly.
type OpsHandler struct {
	log    *logger.Logger
	checks []HealthCheck
}

var _ xhttp.Handler = (*OpsHandler)(nil)

// NewOpsHandler creates the ops handler with the readiness checks to run.
func NewOpsHandler(log *logger.Logger, checks ...HealthCheck) *OpsHandler {
	return &OpsHandler{log: log, checks: checks}
}

func (h *OpsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	e.GET("/readyz", h.Readyz)
}

// Healthz reports process liveness.
func (h *OpsHandler) Healthz(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// Readyz pings every enabled sink. One failing dependency flips the probe
// to 503 so orchestrators stop routing until it recovers.
func (h *OpsHandler) Readyz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessTimeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	healthy := true
	for _, chk := range h.checks {
		if err := chk.Check(ctx); err != nil {
			h.log.Warn("readiness check failed",
				logger.String("check", chk.Name),
				logger.Error(err))
			results[chk.Name] = err.Error()
			healthy = false
			continue
		}
		results[chk.Name] = "ok"
	}

	if !healthy {
		// Probes key off the status code, not the envelope.
		return c.JSON(http.StatusServiceUnavailable, results)
	}
	return xhttp.SuccessResponse(c, results)
}
