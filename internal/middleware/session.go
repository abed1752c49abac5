package middleware

import (
	"errors"
	"net/http"

	"github.com/cleberrangel/linear-pert-api/internal/auth"
	"github.com/cleberrangel/linear-pert-api/internal/logger"
	"github.com/gin-gonic/gin"
)

// Chaves usadas no gin.Context
const (
	ContextSession     = "session"
	ContextUserID      = "user_id"
	ContextUsername    = "username"
	ContextAccessToken = "access_token"
)

// SessionOpener abre o valor do cookie de sessão
type SessionOpener interface {
	Open(token string) (*auth.Session, error)
}

// RequireSession exige uma sessão OAuth válida no cookie.
// A sessão e o access token do Linear ficam disponíveis no contexto.
func RequireSession(sessions SessionOpener) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, _ := c.Cookie(auth.SessionCookieName)

		session, err := sessions.Open(cookie)
		if err != nil {
			code := "SESSION_INVALID"
			switch {
			case errors.Is(err, auth.ErrNoSession):
				code = "SESSION_NOT_FOUND"
			case errors.Is(err, auth.ErrSessionExpired):
				code = "SESSION_EXPIRED"
				logger.Audit(c.Request.Context(), logger.AuditEvent{
					Action:   logger.AuditActionSessionExpired,
					ClientIP: c.ClientIP(),
					Success:  false,
				})
			}

			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   err.Error(),
				"code":    code,
			})
			return
		}

		c.Set(ContextSession, session)
		c.Set(ContextUserID, session.UserID)
		c.Set(ContextUsername, session.UserName)
		c.Set(ContextAccessToken, session.AccessToken)

		ctx := logger.WithUserInfo(c.Request.Context(), session.UserID, session.UserName)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// SessionFrom retorna a sessão colocada no contexto por RequireSession
func SessionFrom(c *gin.Context) (*auth.Session, bool) {
	v, exists := c.Get(ContextSession)
	if !exists {
		return nil, false
	}
	s, ok := v.(*auth.Session)
	return s, ok
}
