package auth

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// SessionCookieName é o nome do cookie de sessão
	SessionCookieName = "linear-pert-session"

	// SessionDuration é a validade máxima de uma sessão
	SessionDuration = 7 * 24 * time.Hour

	sessionKeyInfo = "linear-pert-session v1"
)

var (
	// ErrNoSession indica que a requisição não tem cookie de sessão
	ErrNoSession = errors.New("sessão não encontrada")

	// ErrInvalidSession indica cookie adulterado ou malformado
	ErrInvalidSession = errors.New("sessão inválida")

	// ErrSessionExpired indica sessão ou token OAuth expirado
	ErrSessionExpired = errors.New("sessão expirada")
)

// Session contém os dados do usuário autenticado via OAuth
type Session struct {
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name,omitempty"`
	UserEmail   string    `json:"user_email,omitempty"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// SessionManager sela e abre sessões guardadas em cookie.
// O conteúdo é cifrado e autenticado com XChaCha20-Poly1305; a chave é
// derivada de SESSION_SECRET via HKDF-SHA256.
type SessionManager struct {
	aead cipher.AEAD
	now  func() time.Time
}

// NewSessionManager cria um gerenciador de sessões a partir da chave de assinatura
func NewSessionManager(signingKey string) (*SessionManager, error) {
	if signingKey == "" {
		return nil, errors.New("chave de sessão vazia")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(signingKey), nil, []byte(sessionKeyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derivar chave de sessão: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("criar cifra de sessão: %w", err)
	}

	return &SessionManager{aead: aead, now: time.Now}, nil
}

// Seal serializa e cifra a sessão para uso como valor de cookie
func (m *SessionManager) Seal(s Session) (string, error) {
	if s.IssuedAt.IsZero() {
		s.IssuedAt = m.now()
	}

	payload, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("serializar sessão: %w", err)
	}

	nonce := make([]byte, m.aead.NonceSize(), m.aead.NonceSize()+len(payload)+m.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("gerar nonce: %w", err)
	}

	sealed := m.aead.Seal(nonce, nonce, payload, []byte(SessionCookieName))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decifra e valida o valor do cookie de sessão
func (m *SessionManager) Open(token string) (*Session, error) {
	if token == "" {
		return nil, ErrNoSession
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) < m.aead.NonceSize()+m.aead.Overhead() {
		return nil, ErrInvalidSession
	}

	nonce, ciphertext := raw[:m.aead.NonceSize()], raw[m.aead.NonceSize():]
	payload, err := m.aead.Open(nil, nonce, ciphertext, []byte(SessionCookieName))
	if err != nil {
		return nil, ErrInvalidSession
	}

	var s Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, ErrInvalidSession
	}

	if s.AccessToken == "" || s.UserID == "" {
		return nil, ErrInvalidSession
	}

	now := m.now()
	if now.After(s.ExpiresAt) || now.After(s.IssuedAt.Add(SessionDuration)) {
		return nil, ErrSessionExpired
	}

	return &s, nil
}
