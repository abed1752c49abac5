package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/cleberrangel/linear-pert-api/internal/logger"
	"github.com/cleberrangel/linear-pert-api/internal/metrics"
	"github.com/gin-gonic/gin"
)

// MetricsMiddleware registra contadores internos e o histograma Prometheus por rota
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		elapsed := time.Since(start)
		statusCode := c.Writer.Status()

		metrics.Get().IncrementRequests(statusCode < 400, elapsed.Milliseconds())

		// Rota do gin evita cardinalidade alta com IDs no path
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.Get().TrackEndpoint(route, c.Request.Method, statusCode, elapsed.Milliseconds())
		metrics.ObserveHTTP(c.Request.Method, route, statusCode, elapsed)
	}
}

// AuditMiddleware gera eventos de auditoria para operações que alteram estado
func AuditMiddleware() gin.HandlerFunc {
	auditPrefixes := []string{
		"/api/v1/issues",
		"/auth/logout",
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		shouldAudit := false
		for _, prefix := range auditPrefixes {
			if strings.HasPrefix(path, prefix) {
				shouldAudit = true
				break
			}
		}

		c.Next()

		method := c.Request.Method
		if !shouldAudit || (method != http.MethodPost && method != http.MethodPut && method != http.MethodDelete) {
			return
		}

		logger.AuditRequest(
			c.Request.Context(),
			method,
			path,
			c.Writer.Status(),
			time.Since(start).Milliseconds(),
			c.GetString(ContextUserID),
			c.ClientIP(),
		)
	}
}
