package handler

import (
	"context"
	"net/http"
	"time"

	"lightning-timesheet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const healthCheckTimeout = 3 * time.Second

type depStatus struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthCheck handles GET /health. Dependencies are pinged concurrently, each
// bounded by healthCheckTimeout, so one hung backend cannot stall the probe.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		results := make([]depStatus, len(checkers))

		var g errgroup.Group
		for i, checker := range checkers {
			i, checker := i, checker
			g.Go(func() error {
				results[i] = ping(c.Request.Context(), checker)
				return nil
			})
		}
		_ = g.Wait()

		deps := make(map[string]depStatus, len(checkers))
		status, httpCode := "healthy", http.StatusOK
		for i, checker := range checkers {
			deps[checker.Name()] = results[i]
			if results[i].Status != "healthy" {
				status, httpCode = "degraded", http.StatusServiceUnavailable
			}
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}

func ping(parent context.Context, checker ports.HealthChecker) depStatus {
	ctx, cancel := context.WithTimeout(parent, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	err := checker.Ping(ctx)
	st := depStatus{Status: "healthy", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		st.Status = "unhealthy"
		st.Error = err.Error()
	}
	return st
}
