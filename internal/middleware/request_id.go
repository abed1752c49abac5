package middleware

import (
	"time"

	"github.com/cleberrangel/linear-pert-api/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// HeaderRequestID é o header HTTP para request ID
	HeaderRequestID = "X-Request-ID"
	// HeaderTraceID é o header HTTP para trace ID
	HeaderTraceID = "X-Trace-ID"
)

// RequestID propaga request_id e trace_id recebidos (ou gera novos) e registra
// o fim de cada requisição com rota, status e latência.
// IDs recebidos fora do formato de ValidateID são descartados.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := incomingID(c, HeaderRequestID, func() string { return uuid.NewString()[:8] })
		traceID := incomingID(c, HeaderTraceID, uuid.NewString)

		ctx := logger.WithTraceID(logger.WithRequestID(c.Request.Context(), requestID), traceID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderRequestID, requestID)
		c.Header(HeaderTraceID, traceID)

		c.Next()

		status := c.Writer.Status()

		// Depois de RequireSession o logger do request também tem user_id
		log := logger.Get(c.Request.Context())
		log.WithLevel(levelForStatus(status)).
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Str("client_ip", c.ClientIP()).
			Int("status", status).
			Int("size", c.Writer.Size()).
			Float64("latency_ms", float64(time.Since(start).Microseconds())/1000).
			Msg("Request completed")
	}
}

func incomingID(c *gin.Context, header string, generate func() string) string {
	if id := c.GetHeader(header); ValidateID(id) {
		return id
	}
	return generate()
}

func levelForStatus(status int) zerolog.Level {
	switch {
	case status >= 500:
		return zerolog.ErrorLevel
	case status >= 400:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
