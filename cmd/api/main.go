package main

import (
	"context"
	"database/sql"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cleberrangel/linear-pert-api/internal/auth"
	"github.com/cleberrangel/linear-pert-api/internal/cache"
	"github.com/cleberrangel/linear-pert-api/internal/client"
	"github.com/cleberrangel/linear-pert-api/internal/config"
	"github.com/cleberrangel/linear-pert-api/internal/database"
	"github.com/cleberrangel/linear-pert-api/internal/logger"
	"github.com/cleberrangel/linear-pert-api/internal/metrics"
	"github.com/cleberrangel/linear-pert-api/internal/migration"
	"github.com/cleberrangel/linear-pert-api/internal/model"
	"github.com/cleberrangel/linear-pert-api/internal/repository"
	"github.com/cleberrangel/linear-pert-api/internal/server"
	"github.com/gin-gonic/gin"
)

const Version = "0.3.0"

const shutdownTimeout = 15 * time.Second

func main() {
	// Carrega configurações
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("Erro ao carregar configurações: %v", err)
	}

	// Inicializa logger estruturado
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	logger.InitAudit()
	metrics.Init()
	log := logger.Global()
	log.Info().
		Str("version", Version).
		Str("port", cfg.Port).
		Str("log_level", cfg.LogLevel).
		Bool("log_json", cfg.LogJSON).
		Bool("database", cfg.Database.Enabled()).
		Msg("Linear PERT API iniciando")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Armazenamento de estimativas
	db, store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Erro ao abrir armazenamento de estimativas")
	}
	if db != nil {
		defer database.Close(db)
	}

	sessions, err := auth.NewSessionManager(cfg.OAuth.SessionSigningKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Erro ao criar gerenciador de sessões")
	}

	// Inicializa dependências
	issues := cache.New[[]model.Issue](cfg.CacheTTL)
	defer issues.Stop()

	// Configura modo do Gin
	gin.SetMode(cfg.GinMode)

	app := server.New(server.Deps{
		Config:   cfg,
		DB:       db,
		Store:    store,
		Sessions: sessions,
		OAuth:    auth.NewOAuth(cfg.OAuth),
		Linear:   client.NewClient(cfg.LinearAPIURL),
		Issues:   issues,
		Version:  Version,
	})
	go app.Run(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Servidor iniciando")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Erro ao iniciar servidor")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Sinal recebido, encerrando servidor")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Erro no shutdown do servidor")
	}

	log.Info().Msg("Servidor encerrado")
}

// openStore conecta ao PostgreSQL quando DB_HOST está definido;
// caso contrário usa o armazenamento em memória
func openStore(ctx context.Context, cfg *config.Config) (*sql.DB, repository.EstimateStore, error) {
	log := logger.Global()

	if !cfg.Database.Enabled() {
		log.Warn().Msg("DB_HOST não definido, estimativas ficam em memória")
		return nil, repository.NewMemoryEstimateStore(), nil
	}

	db, err := database.Connect(ctx, database.Config{DatabaseConfig: cfg.Database})
	if err != nil {
		return nil, nil, err
	}

	if err := migration.NewMigrator(db).Run(ctx); err != nil {
		database.Close(db)
		return nil, nil, err
	}

	return db, repository.NewPostgresEstimateStore(db), nil
}
