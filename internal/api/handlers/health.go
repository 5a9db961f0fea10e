package handlers

import (
	"context"
	"net/http"
	"time"

	"chatkaro-service/internal/websocket"

	"github.com/gin-gonic/gin"
)

// HubStats reports live connection figures.
type HubStats interface {
	ConnectionCount() int
	OnlineUsers() []websocket.UserID
	MetricsSnapshot() websocket.MetricsSnapshot
	RecentDispatches(n int) []websocket.DispatchMetric
}

const recentDispatches = 20

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	hub    HubStats
	checks map[string]Pinger
}

func NewHealthHandler(hub HubStats, checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{hub: hub, checks: checks}
}

// Health godoc
// @Summary Liveness and delivery metrics
// @Tags ops
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /healthz [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	c.JSON(status, gin.H{
		"status":      http.StatusText(status),
		"connections": h.hub.ConnectionCount(),
		"online":      len(h.hub.OnlineUsers()),
		"metrics":     h.hub.MetricsSnapshot(),
		"recent":      h.hub.RecentDispatches(recentDispatches),
		"deps":        deps,
	})
}
