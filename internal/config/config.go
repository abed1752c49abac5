package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// MinSessionSecretLength é o tamanho mínimo de SESSION_SECRET
const MinSessionSecretLength = 32

// OAuthConfig contém a configuração do fluxo OAuth do Linear e da sessão.
// Só o componente de autenticação recebe esta configuração.
type OAuthConfig struct {
	ClientID          string
	ClientSecret      string
	RedirectURI       string
	SessionSigningKey string
	CookieSecure      bool
}

// DatabaseConfig contém a configuração do PostgreSQL.
// Host vazio indica uso do armazenamento em memória.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Enabled indica se um banco foi configurado
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// Config armazena as configurações da aplicação
type Config struct {
	Port         string
	GinMode      string
	LogLevel     string
	LogJSON      bool
	TokenAPI     string
	BaseURL      string
	LinearAPIURL string
	CacheTTL     time.Duration
	OAuth        OAuthConfig
	Database     DatabaseConfig
}

var (
	// ErrMissingOAuth indica que a configuração OAuth do Linear está incompleta
	ErrMissingOAuth = errors.New("LINEAR_CLIENT_ID, LINEAR_CLIENT_SECRET e LINEAR_REDIRECT_URI são obrigatórios")

	// ErrWeakSessionSecret indica SESSION_SECRET ausente ou curto demais
	ErrWeakSessionSecret = fmt.Errorf("SESSION_SECRET deve ter pelo menos %d caracteres", MinSessionSecretLength)
)

// Load carrega as configurações do ambiente
func Load() (*Config, error) {
	// Tenta carregar .env de múltiplos locais
	_ = godotenv.Load()
	_ = godotenv.Load("../.env")

	return FromEnv(os.Getenv)
}

// FromEnv monta a configuração a partir de uma função de lookup
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:         getenv("PORT"),
		GinMode:      getenv("GIN_MODE"),
		LogLevel:     getenv("LOG_LEVEL"),
		LogJSON:      parseBool(getenv("LOG_JSON")),
		TokenAPI:     getenv("TOKEN_API"),
		BaseURL:      getenv("BASE_URL"),
		LinearAPIURL: getenv("LINEAR_API_URL"),
		OAuth: OAuthConfig{
			ClientID:          getenv("LINEAR_CLIENT_ID"),
			ClientSecret:      getenv("LINEAR_CLIENT_SECRET"),
			RedirectURI:       getenv("LINEAR_REDIRECT_URI"),
			SessionSigningKey: getenv("SESSION_SECRET"),
			CookieSecure:      parseBool(getenv("COOKIE_SECURE")),
		},
		Database: DatabaseConfig{
			Host:     getenv("DB_HOST"),
			Port:     getenv("DB_PORT"),
			User:     getenv("DB_USER"),
			Password: getenv("DB_PASSWORD"),
			DBName:   getenv("DB_NAME"),
			SSLMode:  getenv("DB_SSLMODE"),
		},
	}

	// Validações obrigatórias
	if cfg.OAuth.ClientID == "" || cfg.OAuth.ClientSecret == "" || cfg.OAuth.RedirectURI == "" {
		return nil, ErrMissingOAuth
	}

	if len(cfg.OAuth.SessionSigningKey) < MinSessionSecretLength {
		return nil, ErrWeakSessionSecret
	}

	ttl := getenv("CACHE_TTL")
	if ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("CACHE_TTL inválido: %w", err)
		}
		cfg.CacheTTL = d
	}

	// Defaults
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	if cfg.GinMode == "" {
		cfg.GinMode = "debug"
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:3000"
	}

	if cfg.LinearAPIURL == "" {
		cfg.LinearAPIURL = "https://api.linear.app/graphql"
	}

	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 2 * time.Minute
	}

	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}

	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "linear_pert"
	}

	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	return cfg, nil
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
