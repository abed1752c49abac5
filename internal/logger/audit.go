package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// AuditAction é o tipo de ação registrada na trilha de auditoria
type AuditAction string

// Sessão OAuth
const (
	AuditActionLogin          AuditAction = "LOGIN"
	AuditActionLogout         AuditAction = "LOGOUT"
	AuditActionLoginFailed    AuditAction = "LOGIN_FAILED"
	AuditActionSessionExpired AuditAction = "SESSION_EXPIRED"
)

// Estimativas e relatórios
const (
	AuditActionEstimateSave   AuditAction = "ESTIMATE_SAVE"
	AuditActionEstimateDelete AuditAction = "ESTIMATE_DELETE"
	AuditActionReportExport   AuditAction = "REPORT_EXPORT"
)

// WebSocket e API
const (
	AuditActionWSConnect    AuditAction = "WS_CONNECT"
	AuditActionWSDisconnect AuditAction = "WS_DISCONNECT"
	AuditActionAPIRequest   AuditAction = "API_REQUEST"
	AuditActionAPIError     AuditAction = "API_ERROR"
)

// AuditEvent é uma entrada da trilha de auditoria. Campos vazios não são gravados.
type AuditEvent struct {
	Action     AuditAction
	UserID     string
	Username   string
	Resource   string
	ResourceID string
	Details    map[string]interface{}
	ClientIP   string
	RequestID  string
	Success    bool
	Error      string
	Duration   int64 // ms
	Method     string
	Path       string
	StatusCode int
}

var auditLogger zerolog.Logger

// InitAudit deriva o logger de auditoria do logger global
func InitAudit() {
	auditLogger = globalLogger.With().Str("log_type", "audit").Logger()
}

// Audit grava o evento; usuário e request_id ausentes vêm do contexto.
// Falhas saem em nível warn.
func Audit(ctx context.Context, event AuditEvent) {
	if event.RequestID == "" {
		event.RequestID = GetRequestID(ctx)
	}
	if event.UserID == "" {
		event.UserID = GetUserID(ctx)
	}
	if event.Username == "" {
		event.Username = GetUsername(ctx)
	}

	entry := auditLogger.Info()
	if !event.Success {
		entry = auditLogger.Warn()
	}

	entry = entry.
		Str("action", string(event.Action)).
		Bool("success", event.Success)

	for _, f := range []struct{ key, value string }{
		{"user_id", event.UserID},
		{"username", event.Username},
		{"resource", event.Resource},
		{"resource_id", event.ResourceID},
		{"client_ip", event.ClientIP},
		{"request_id", event.RequestID},
		{"error", event.Error},
		{"method", event.Method},
		{"path", event.Path},
	} {
		if f.value != "" {
			entry = entry.Str(f.key, f.value)
		}
	}

	if event.Duration > 0 {
		entry = entry.Int64("duration_ms", event.Duration)
	}
	if event.StatusCode > 0 {
		entry = entry.Int("status_code", event.StatusCode)
	}
	if len(event.Details) > 0 {
		entry = entry.Fields(event.Details)
	}

	entry.Msg("Audit event")
}

// AuditRequest registra uma requisição de escrita na API
func AuditRequest(ctx context.Context, method, path string, statusCode int, duration int64, userID, clientIP string) {
	success := statusCode < 400
	action := AuditActionAPIRequest
	if !success {
		action = AuditActionAPIError
	}

	Audit(ctx, AuditEvent{
		Action:     action,
		UserID:     userID,
		Resource:   "api",
		Method:     method,
		Path:       path,
		StatusCode: statusCode,
		Duration:   duration,
		ClientIP:   clientIP,
		Success:    success,
	})
}

// AuditEstimate registra a gravação ou remoção da estimativa de uma issue
func AuditEstimate(ctx context.Context, action AuditAction, issueID string, success bool, details map[string]interface{}) {
	Audit(ctx, AuditEvent{
		Action:     action,
		Resource:   "estimate",
		ResourceID: issueID,
		Success:    success,
		Details:    details,
	})
}

// AuditWebSocket registra conexão e desconexão WebSocket
func AuditWebSocket(ctx context.Context, action AuditAction, userID, clientIP string, details map[string]interface{}) {
	Audit(ctx, AuditEvent{
		Action:   action,
		UserID:   userID,
		Resource: "websocket",
		ClientIP: clientIP,
		Success:  true,
		Details:  details,
	})
}
