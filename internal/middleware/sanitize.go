package middleware

import (
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
)

// MaxTitleLength é o tamanho máximo de títulos exportados
const MaxTitleLength = 255

var validID = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// SanitizeString remove bytes nulos e controles, apara espaços e limita o tamanho em runes
func SanitizeString(input string, maxLength int) string {
	input = removeControlChars(input)
	input = strings.TrimSpace(input)

	if runes := []rune(input); maxLength > 0 && len(runes) > maxLength {
		input = string(runes[:maxLength])
	}

	return input
}

// SanitizeTitle limpa títulos de issues vindos do Linear
func SanitizeTitle(title string) string {
	return SanitizeString(title, MaxTitleLength)
}

// ValidateID valida IDs do Linear (UUIDs e identificadores como ENG-123)
func ValidateID(id string) bool {
	return validID.MatchString(id)
}

// ValidIDParams recusa requisições cujos parâmetros de path não são IDs válidos.
// Parâmetros ausentes na rota são ignorados.
func ValidIDParams(names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, name := range names {
			value, ok := c.Params.Get(name)
			if !ok {
				continue
			}
			if !ValidateID(value) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
					"success": false,
					"error":   "parâmetro inválido: " + name,
				})
				return
			}
		}
		c.Next()
	}
}

// removeControlChars remove caracteres de controle de uma string
func removeControlChars(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}
