package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// OAuthStateCookieName é o cookie que guarda o state do fluxo OAuth
	OAuthStateCookieName = "linear-oauth-state"
	// OAuthStateLength é o tamanho do state em bytes
	OAuthStateLength = 32
	// OAuthStateDuration é a validade do state
	OAuthStateDuration = 10 * time.Minute
)

// OAuthStateConfig contém a configuração do cookie de state
type OAuthStateConfig struct {
	CookieSecure bool
	CookiePath   string
}

// OAuthState emite e confere o parâmetro state do authorization code flow
type OAuthState struct {
	config OAuthStateConfig
}

// NewOAuthState cria o emissor de state
func NewOAuthState(config OAuthStateConfig) *OAuthState {
	if config.CookiePath == "" {
		config.CookiePath = "/"
	}
	return &OAuthState{config: config}
}

// Issue gera um state aleatório e grava no cookie
func (s *OAuthState) Issue(c *gin.Context) (string, error) {
	bytes := make([]byte, OAuthStateLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(bytes)

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		OAuthStateCookieName,
		state,
		int(OAuthStateDuration.Seconds()),
		s.config.CookiePath,
		"",
		s.config.CookieSecure,
		true,
	)

	return state, nil
}

// Verify confere o state recebido no callback e apaga o cookie
func (s *OAuthState) Verify(c *gin.Context, state string) bool {
	expected, err := c.Cookie(OAuthStateCookieName)
	s.clear(c)

	if err != nil || expected == "" || state == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(expected), []byte(state)) == 1
}

func (s *OAuthState) clear(c *gin.Context) {
	c.SetCookie(OAuthStateCookieName, "", -1, s.config.CookiePath, "", s.config.CookieSecure, true)
}
