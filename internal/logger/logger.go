package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const serviceName = "linear-pert-api"

type ctxKey struct{}

// requestInfo são os identificadores carregados pelo contexto de uma requisição.
// Cada With* copia o valor e reconstrói o logger, nunca altera o anterior.
type requestInfo struct {
	RequestID string
	TraceID   string
	UserID    string
	Username  string

	logger zerolog.Logger
}

var globalLogger zerolog.Logger

// Init inicializa o logger global em stdout
func Init(level string, jsonFormat bool) {
	InitWithWriter(level, jsonFormat, os.Stdout)
}

// InitWithWriter inicializa o logger global escrevendo em out.
// Nível inválido vira info; sem JSON a saída é legível no terminal.
func InitWithWriter(level string, jsonFormat bool, out io.Writer) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if !jsonFormat {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	globalLogger = zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	InitAudit()
}

// Global retorna o logger global
func Global() *zerolog.Logger {
	return &globalLogger
}

// Get retorna o logger da requisição ou o global
func Get(ctx context.Context) *zerolog.Logger {
	if info := infoFrom(ctx); info != nil {
		return &info.logger
	}
	return &globalLogger
}

// FromGin extrai o logger do contexto Gin
func FromGin(c *gin.Context) *zerolog.Logger {
	return Get(c.Request.Context())
}

// WithRequestID associa o request_id ao contexto e ao logger
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return with(ctx, func(info *requestInfo) { info.RequestID = requestID })
}

// WithTraceID associa o trace_id ao contexto e ao logger
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return with(ctx, func(info *requestInfo) { info.TraceID = traceID })
}

// WithUserInfo associa o usuário do Linear ao contexto e ao logger
func WithUserInfo(ctx context.Context, userID, username string) context.Context {
	return with(ctx, func(info *requestInfo) {
		info.UserID = userID
		info.Username = username
	})
}

// GetRequestID extrai request_id do contexto
func GetRequestID(ctx context.Context) string {
	if info := infoFrom(ctx); info != nil {
		return info.RequestID
	}
	return ""
}

// GetTraceID extrai trace_id do contexto
func GetTraceID(ctx context.Context) string {
	if info := infoFrom(ctx); info != nil {
		return info.TraceID
	}
	return ""
}

// GetUserID extrai user_id do contexto
func GetUserID(ctx context.Context) string {
	if info := infoFrom(ctx); info != nil {
		return info.UserID
	}
	return ""
}

// GetUsername extrai username do contexto
func GetUsername(ctx context.Context) string {
	if info := infoFrom(ctx); info != nil {
		return info.Username
	}
	return ""
}

// TraceContext retorna os identificadores presentes no contexto
func TraceContext(ctx context.Context) map[string]string {
	return map[string]string{
		"request_id": GetRequestID(ctx),
		"trace_id":   GetTraceID(ctx),
		"user_id":    GetUserID(ctx),
		"username":   GetUsername(ctx),
	}
}

func infoFrom(ctx context.Context) *requestInfo {
	if ctx == nil {
		return nil
	}
	info, _ := ctx.Value(ctxKey{}).(*requestInfo)
	return info
}

func with(ctx context.Context, update func(*requestInfo)) context.Context {
	var info requestInfo
	if current := infoFrom(ctx); current != nil {
		info = *current
	}
	update(&info)

	lc := globalLogger.With()
	for _, f := range []struct{ key, value string }{
		{"request_id", info.RequestID},
		{"trace_id", info.TraceID},
		{"user_id", info.UserID},
		{"username", info.Username},
	} {
		if f.value != "" {
			lc = lc.Str(f.key, f.value)
		}
	}
	info.logger = lc.Logger()

	return context.WithValue(ctx, ctxKey{}, &info)
}
