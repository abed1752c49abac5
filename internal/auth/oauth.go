package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cleberrangel/linear-pert-api/internal/config"
)

const (
	// AuthorizeURL é a página de autorização OAuth do Linear
	AuthorizeURL = "https://linear.app/oauth/authorize"

	// TokenURL é o endpoint de troca de código por token
	TokenURL = "https://api.linear.app/oauth/token"

	// Scope solicitado ao Linear
	Scope = "read,write"
)

// Token é a resposta do endpoint de token do Linear
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

// Expiry retorna o instante de expiração do token a partir de now
func (t Token) Expiry(now time.Time) time.Time {
	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// OAuth implementa o fluxo authorization code do Linear
type OAuth struct {
	cfg          config.OAuthConfig
	httpClient   *http.Client
	authorizeURL string
	tokenURL     string
}

// NewOAuth cria o cliente OAuth com os endpoints padrão do Linear
func NewOAuth(cfg config.OAuthConfig) *OAuth {
	return NewOAuthWithEndpoints(cfg, AuthorizeURL, TokenURL)
}

// NewOAuthWithEndpoints permite apontar para outros endpoints (testes)
func NewOAuthWithEndpoints(cfg config.OAuthConfig, authorizeURL, tokenURL string) *OAuth {
	return &OAuth{
		cfg:          cfg,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		authorizeURL: authorizeURL,
		tokenURL:     tokenURL,
	}
}

// AuthorizationURL monta a URL de autorização com o state informado
func (o *OAuth) AuthorizationURL(state string) string {
	params := url.Values{}
	params.Set("client_id", o.cfg.ClientID)
	params.Set("redirect_uri", o.cfg.RedirectURI)
	params.Set("response_type", "code")
	params.Set("scope", Scope)
	if state != "" {
		params.Set("state", state)
	}

	return o.authorizeURL + "?" + params.Encode()
}

// Exchange troca o código de autorização por um access token
func (o *OAuth) Exchange(ctx context.Context, code string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", o.cfg.ClientID)
	form.Set("client_secret", o.cfg.ClientSecret)
	form.Set("redirect_uri", o.cfg.RedirectURI)
	form.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("criar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executar request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("trocar código por token: status %d: %s", resp.StatusCode, string(body))
	}

	var token Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}

	if token.AccessToken == "" {
		return nil, fmt.Errorf("resposta sem access_token")
	}

	return &token, nil
}
