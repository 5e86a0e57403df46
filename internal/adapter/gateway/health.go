package gateway

import (
	"context"
	"fmt"

	"lexpay/internal/core/domain"
)

// HealthCheck adapts the provider probe to ports.HealthChecker.
type HealthCheck struct {
	client *Client
}

func NewHealthCheck(client *Client) *HealthCheck {
	return &HealthCheck{client: client}
}

// Ping fails only when the provider is unreachable; degraded still serves traffic.
func (h *HealthCheck) Ping(ctx context.Context) error {
	if status := h.client.CheckServiceHealth(ctx); status == domain.ServiceUnreachable {
		return fmt.Errorf("gateway %s", status)
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "gateway"
}
