package handler

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/cleberrangel/linear-pert-api/internal/auth"
	"github.com/cleberrangel/linear-pert-api/internal/logger"
	"github.com/cleberrangel/linear-pert-api/internal/metrics"
	"github.com/cleberrangel/linear-pert-api/internal/middleware"
	"github.com/cleberrangel/linear-pert-api/internal/model"
	"github.com/gin-gonic/gin"
)

// OAuthFlow é o fluxo authorization code do Linear
type OAuthFlow interface {
	AuthorizationURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.Token, error)
}

// ViewerFetcher busca o usuário dono do token
type ViewerFetcher interface {
	Viewer(ctx context.Context, accessToken string) (*model.Viewer, error)
}

// SessionSealer cifra e abre a sessão do cookie
type SessionSealer interface {
	Seal(s auth.Session) (string, error)
	Open(token string) (*auth.Session, error)
}

// AuthConfig contém o que o handler de autenticação precisa da configuração
type AuthConfig struct {
	BaseURL      string
	CookieSecure bool
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	oauth    OAuthFlow
	viewer   ViewerFetcher
	sessions SessionSealer
	state    *middleware.OAuthState
	config   AuthConfig
	now      func() time.Time
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(oauth OAuthFlow, viewer ViewerFetcher, sessions SessionSealer, state *middleware.OAuthState, config AuthConfig) *AuthHandler {
	return &AuthHandler{
		oauth:    oauth,
		viewer:   viewer,
		sessions: sessions,
		state:    state,
		config:   config,
		now:      time.Now,
	}
}

// Login redireciona para a tela de autorização do Linear
func (h *AuthHandler) Login(c *gin.Context) {
	state, err := h.state.Issue(c)
	if err != nil {
		logger.FromGin(c).Error().Err(err).Msg("Erro ao gerar state OAuth")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Erro interno do servidor",
			"code":    "STATE_ERROR",
		})
		return
	}

	c.Redirect(http.StatusFound, h.oauth.AuthorizationURL(state))
}

// Callback recebe o código do Linear, cria a sessão e volta para o dashboard
func (h *AuthHandler) Callback(c *gin.Context) {
	ctx := c.Request.Context()

	if oauthErr := c.Query("error"); oauthErr != "" {
		h.loginFailed(c, "", oauthErr)
		c.Redirect(http.StatusFound, h.redirectWithError(oauthErr))
		return
	}

	if !h.state.Verify(c, c.Query("state")) {
		h.loginFailed(c, "", "state mismatch")
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "State OAuth inválido",
			"code":    "INVALID_STATE",
		})
		return
	}

	code := c.Query("code")
	if code == "" {
		h.loginFailed(c, "", "missing code")
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Código de autorização ausente",
			"code":    "MISSING_CODE",
		})
		return
	}

	token, err := h.oauth.Exchange(ctx, code)
	if err != nil {
		h.loginFailed(c, "", err.Error())
		c.Redirect(http.StatusFound, h.redirectWithError("token_exchange_failed"))
		return
	}

	viewer, err := h.viewer.Viewer(ctx, token.AccessToken)
	if err != nil {
		h.loginFailed(c, "", err.Error())
		c.Redirect(http.StatusFound, h.redirectWithError("viewer_failed"))
		return
	}

	now := h.now()
	expiresAt := now.Add(auth.SessionDuration)
	if token.ExpiresIn > 0 {
		if tokenExpiry := token.Expiry(now); tokenExpiry.Before(expiresAt) {
			expiresAt = tokenExpiry
		}
	}

	sealed, err := h.sessions.Seal(auth.Session{
		AccessToken: token.AccessToken,
		UserID:      viewer.ID,
		UserName:    viewer.Name,
		UserEmail:   viewer.Email,
		IssuedAt:    now,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		h.loginFailed(c, viewer.ID, err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Erro interno do servidor",
			"code":    "SESSION_CREATE_ERROR",
		})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		auth.SessionCookieName,
		sealed,
		int(expiresAt.Sub(now).Seconds()),
		"/",
		"",
		h.config.CookieSecure,
		true,
	)

	logger.Audit(ctx, logger.AuditEvent{
		Action:   logger.AuditActionLogin,
		UserID:   viewer.ID,
		Username: viewer.Name,
		Resource: "auth",
		ClientIP: c.ClientIP(),
		Success:  true,
	})
	metrics.Get().IncrementLogin(true)

	c.Redirect(http.StatusFound, h.config.BaseURL)
}

// Logout apaga o cookie de sessão. GET redireciona, POST responde JSON.
func (h *AuthHandler) Logout(c *gin.Context) {
	cookie, _ := c.Cookie(auth.SessionCookieName)
	if session, err := h.sessions.Open(cookie); err == nil {
		logger.Audit(c.Request.Context(), logger.AuditEvent{
			Action:   logger.AuditActionLogout,
			UserID:   session.UserID,
			Username: session.UserName,
			Resource: "auth",
			ClientIP: c.ClientIP(),
			Success:  true,
		})
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.SessionCookieName, "", -1, "/", "", h.config.CookieSecure, true)

	if c.Request.Method == http.MethodGet {
		c.Redirect(http.StatusFound, h.config.BaseURL)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Logout realizado com sucesso",
	})
}

// Me returns information about the currently authenticated user
func (h *AuthHandler) Me(c *gin.Context) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Sessão não encontrada",
			"code":    "SESSION_NOT_FOUND",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user": gin.H{
			"id":    session.UserID,
			"name":  session.UserName,
			"email": session.UserEmail,
		},
		"expires_at": session.ExpiresAt,
	})
}

func (h *AuthHandler) loginFailed(c *gin.Context, userID, reason string) {
	logger.Audit(c.Request.Context(), logger.AuditEvent{
		Action:   logger.AuditActionLoginFailed,
		UserID:   userID,
		Resource: "auth",
		ClientIP: c.ClientIP(),
		Success:  false,
		Error:    reason,
	})
	metrics.Get().IncrementLogin(false)
}

func (h *AuthHandler) redirectWithError(reason string) string {
	target, err := url.Parse(h.config.BaseURL)
	if err != nil {
		return "/"
	}

	q := target.Query()
	q.Set("auth_error", reason)
	target.RawQuery = q.Encode()
	return target.String()
}
