package handler

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/cleberrangel/linear-pert-api/internal/database"
	"github.com/cleberrangel/linear-pert-api/internal/metrics"
	"github.com/cleberrangel/linear-pert-api/internal/websocket"
	"github.com/gin-gonic/gin"
)

// maxHeapMB é o limite de heap usado no readiness
const maxHeapMB = 512

// HealthHandler responde probes e o snapshot de métricas
type HealthHandler struct {
	db      *sql.DB
	wsHub   *websocket.Hub
	version string
	started time.Time
}

// NewHealthHandler cria o handler. db é nil quando as estimativas ficam em memória.
func NewHealthHandler(db *sql.DB, wsHub *websocket.Hub, version string) *HealthHandler {
	return &HealthHandler{db: db, wsHub: wsHub, version: version, started: time.Now()}
}

// LivenessCheck
// @Summary Liveness check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health/live [get]
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ReadinessCheck verifica banco, memória e hub; unhealthy responde 503
// @Summary Readiness check
// @Tags health
// @Produce json
// @Success 200 {object} metrics.HealthCheck
// @Failure 503 {object} metrics.HealthCheck
// @Router /health/ready [get]
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	components := map[string]metrics.HealthStatus{
		"memory": metrics.CheckMemoryHealth(maxHeapMB),
	}

	if h.db == nil {
		components["database"] = metrics.HealthStatus{Status: metrics.StatusHealthy, Message: "in-memory store"}
	} else {
		components["database"] = metrics.CheckDatabaseHealth(c.Request.Context(), h.db)
	}

	if h.wsHub != nil {
		components["websocket"] = metrics.HealthStatus{Status: metrics.StatusHealthy}
	}

	report := metrics.HealthCheck{
		Status:     metrics.DetermineOverallStatus(components),
		Version:    h.version,
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	}

	code := http.StatusOK
	if report.Status == metrics.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, report)
}

// GetMetrics
// @Summary Get application metrics
// @Tags metrics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} metrics.Snapshot
// @Router /api/v1/metrics [get]
func (h *HealthHandler) GetMetrics(c *gin.Context) {
	resp := gin.H{
		"version": h.version,
		"metrics": metrics.Get().Snapshot(),
	}
	if h.wsHub != nil {
		resp["websocket_clients"] = h.wsHub.GetConnectionCount()
	}
	if h.db != nil {
		resp["database_pool"] = database.Stats(h.db)
	}
	c.JSON(http.StatusOK, resp)
}
