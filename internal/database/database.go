package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/cleberrangel/linear-pert-api/internal/config"
	"github.com/cleberrangel/linear-pert-api/internal/logger"
	_ "github.com/lib/pq"
)

const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = 2 * time.Minute

	connectTimeout = 5 * time.Second
)

// Config junta a configuração de conexão e a do pool.
// Campos zerados do pool recebem os defaults.
type Config struct {
	config.DatabaseConfig

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func orDefault[T int | time.Duration](v, def T) T {
	if v == 0 {
		return def
	}
	return v
}

func (cfg Config) withDefaults() Config {
	cfg.MaxOpenConns = orDefault(cfg.MaxOpenConns, defaultMaxOpenConns)
	cfg.MaxIdleConns = orDefault(cfg.MaxIdleConns, defaultMaxIdleConns)
	cfg.ConnMaxLifetime = orDefault(cfg.ConnMaxLifetime, defaultConnMaxLifetime)
	cfg.ConnMaxIdleTime = orDefault(cfg.ConnMaxIdleTime, defaultConnMaxIdleTime)
	return cfg
}

// DSN monta a URL de conexão do lib/pq com as credenciais escapadas
func (cfg Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + cfg.Port,
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": {cfg.SSLMode}}.Encode(),
	}
	return u.String()
}

// Connect abre o pool e só retorna depois de um ping bem-sucedido
func Connect(ctx context.Context, cfg Config) (*sql.DB, error) {
	cfg = cfg.withDefaults()
	log := logger.Get(ctx).With().
		Str("host", cfg.Host).
		Str("dbname", cfg.DBName).
		Logger()

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("abrindo conexão com %s: %w", cfg.Host, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping em %s: %w", cfg.Host, err)
	}

	log.Info().Int("max_open_conns", cfg.MaxOpenConns).Msg("PostgreSQL conectado")
	return db, nil
}

// Close aceita db nil
func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// PoolStats é a parte de sql.DBStats exposta em /api/v1/metrics
type PoolStats struct {
	MaxOpen  int   `json:"max_open_connections"`
	Open     int   `json:"open_connections"`
	InUse    int   `json:"in_use"`
	Idle     int   `json:"idle"`
	Waits    int64 `json:"wait_count"`
	WaitedMs int64 `json:"wait_duration_ms"`
}

// Stats lê as estatísticas do pool
func Stats(db *sql.DB) PoolStats {
	s := db.Stats()
	return PoolStats{
		MaxOpen:  s.MaxOpenConnections,
		Open:     s.OpenConnections,
		InUse:    s.InUse,
		Idle:     s.Idle,
		Waits:    s.WaitCount,
		WaitedMs: s.WaitDuration.Milliseconds(),
	}
}
