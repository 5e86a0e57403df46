package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"lexpay/internal/adapter/http/dto"
	"lexpay/internal/core/ports"
	"lexpay/pkg/response"

	"github.com/gin-gonic/gin"
)

const healthProbeTimeout = 3 * time.Second

// HealthCheck handles GET /health. Checkers are probed in parallel and any
// failure turns the answer into 503 "degraded".
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
		defer cancel()

		var (
			mu   sync.Mutex
			wg   sync.WaitGroup
			body = dto.HealthResponse{Status: "healthy", Dependencies: make(map[string]dto.DependencyHealth, len(checkers))}
		)
		for _, checker := range checkers {
			wg.Add(1)
			go func(hc ports.HealthChecker) {
				defer wg.Done()
				dep := dto.DependencyHealth{Status: "healthy"}
				if err := hc.Ping(ctx); err != nil {
					dep = dto.DependencyHealth{Status: "unhealthy", Error: err.Error()}
				}
				mu.Lock()
				defer mu.Unlock()
				body.Dependencies[hc.Name()] = dep
				if dep.Error != "" {
					body.Status = "degraded"
				}
			}(checker)
		}
		wg.Wait()

		code := http.StatusOK
		if body.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, body)
	}
}

// GatewayHealth handles GET /api/v1/gateway/health. The provider state is
// reported in the body; the endpoint itself always answers 200.
func GatewayHealth(gw ports.GatewayClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := gw.CheckServiceHealth(c.Request.Context())
		response.OK(c, dto.GatewayHealthResponse{Status: string(state)})
	}
}
