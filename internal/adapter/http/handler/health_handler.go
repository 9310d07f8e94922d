package handler

import (
	"context"
	"net/http"
	"time"

	"marketplace-settlement/internal/core/ports"

	"github.com/gin-gonic/gin"
)

const healthPingTimeout = 2 * time.Second

// BackgroundJob is a long-running loop whose liveness is reported by /health.
type BackgroundJob interface {
	Running() bool
}

type depStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthCheck handles GET /health. Every storage dependency is pinged; a
// failing one, or a stopped background job, reports the service as degraded.
func HealthCheck(jobs map[string]BackgroundJob, checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		deps := make(map[string]depStatus, len(checkers))
		allHealthy := true

		for _, checker := range checkers {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
			err := checker.Ping(ctx)
			cancel()
			if err != nil {
				deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		jobStatus := make(map[string]string, len(jobs))
		for name, job := range jobs {
			if job.Running() {
				jobStatus[name] = "running"
			} else {
				jobStatus[name] = "stopped"
				allHealthy = false
			}
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
			"jobs":         jobStatus,
		})
	}
}
