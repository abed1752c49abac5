package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthConfig contém o token das rotas operacionais (TOKEN_API)
type AuthConfig struct {
	TokenAPI string
}

// BearerAuth protege rotas operacionais como /api/v1/metrics.
// Sem TOKEN_API configurado todas as requisições são recusadas.
func BearerAuth(cfg AuthConfig) gin.HandlerFunc {
	expected := []byte(cfg.TokenAPI)

	return func(c *gin.Context) {
		if len(expected) == 0 {
			unauthorized(c, "TOKEN_API não configurado")
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c, "esperado header Authorization: Bearer {token}")
			return
		}

		if subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			unauthorized(c, "token inválido")
			return
		}

		c.Next()
	}
}

// bearerToken extrai o token de "Bearer {token}"; o esquema não diferencia maiúsculas
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", false
	}
	return token, true
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   message,
	})
}
