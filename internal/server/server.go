package server

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cleberrangel/linear-pert-api/internal/auth"
	"github.com/cleberrangel/linear-pert-api/internal/cache"
	"github.com/cleberrangel/linear-pert-api/internal/config"
	"github.com/cleberrangel/linear-pert-api/internal/handler"
	"github.com/cleberrangel/linear-pert-api/internal/metrics"
	"github.com/cleberrangel/linear-pert-api/internal/middleware"
	"github.com/cleberrangel/linear-pert-api/internal/model"
	"github.com/cleberrangel/linear-pert-api/internal/repository"
	"github.com/cleberrangel/linear-pert-api/internal/service"
	"github.com/cleberrangel/linear-pert-api/internal/websocket"
	"github.com/gin-gonic/gin"
)

// Linear é o que o servidor usa da API do Linear
type Linear interface {
	service.LinearAPI
	handler.ViewerFetcher
}

// Deps são as dependências já construídas pelo main (ou pelos testes)
type Deps struct {
	Config   *config.Config
	DB       *sql.DB // nil com armazenamento em memória
	Store    repository.EstimateStore
	Sessions *auth.SessionManager
	OAuth    handler.OAuthFlow
	Linear   Linear
	Issues   *cache.Cache[[]model.Issue]
	Version  string
}

// Server agrupa o router e o hub WebSocket
type Server struct {
	Router *gin.Engine
	Hub    *websocket.Hub
}

// New monta serviços, handlers e rotas
func New(deps Deps) *Server {
	cfg := deps.Config

	estimates := service.NewEstimateService()
	hub := websocket.NewHub(estimates)
	projects := service.NewProjectService(deps.Linear, deps.Store, estimates, deps.Issues, hub)
	hub.SetProjectViewer(projects)
	websocket.SetAllowedOrigins(strings.TrimSuffix(cfg.BaseURL, "/"))

	oauthState := middleware.NewOAuthState(middleware.OAuthStateConfig{
		CookieSecure: cfg.OAuth.CookieSecure,
	})

	healthHandler := handler.NewHealthHandler(deps.DB, hub, deps.Version)
	pertHandler := handler.NewPertHandler(estimates)
	projectHandler := handler.NewProjectHandler(projects, service.NewExcelExporter())
	wsHandler := handler.NewWebSocketHandler(hub)
	authHandler := handler.NewAuthHandler(deps.OAuth, deps.Linear, deps.Sessions, oauthState, handler.AuthConfig{
		BaseURL:      cfg.BaseURL,
		CookieSecure: cfg.OAuth.CookieSecure,
	})

	r := gin.New()
	r.Use(middleware.RequestID()) // Request ID + logging estruturado
	r.Use(gin.Recovery())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.AuditMiddleware())

	// Health check e métricas (público)
	r.GET("/health/live", healthHandler.LivenessCheck)
	r.GET("/health/ready", healthHandler.ReadinessCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	requireSession := middleware.RequireSession(deps.Sessions)

	// OAuth do Linear
	authGroup := r.Group("/auth")
	{
		authGroup.GET("/login", authHandler.Login)
		authGroup.GET("/callback", authHandler.Callback)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/logout", authHandler.Logout)
		authGroup.GET("/me", requireSession, authHandler.Me)
	}

	r.GET("/ws", requireSession, wsHandler.HandleConnection)

	api := r.Group("/api/v1")
	{
		api.GET("/metrics", middleware.BearerAuth(middleware.AuthConfig{
			TokenAPI: cfg.TokenAPI,
		}), healthHandler.GetMetrics)

		// Cálculo PERT sem estado
		api.POST("/pert/validate", pertHandler.Validate)
		api.POST("/pert/calculate", pertHandler.Calculate)
		api.POST("/pert/aggregate", pertHandler.Aggregate)
	}

	linear := api.Group("", requireSession, middleware.ValidIDParams("projectId", "issueId", "teamId"))
	{
		linear.GET("/workspace", projectHandler.Workspace)
		linear.GET("/dashboard", projectHandler.Dashboard)
		linear.GET("/teams", projectHandler.Teams)
		linear.GET("/teams/:teamId/issues", projectHandler.TeamIssues)
		linear.GET("/projects", projectHandler.Projects)
		linear.GET("/projects/:projectId/pert", projectHandler.ProjectPert)
		linear.GET("/projects/:projectId/export", projectHandler.Export)
		linear.GET("/projects/:projectId/subscribers", wsHandler.Subscribers)
		linear.PUT("/issues/:issueId/estimate", projectHandler.SaveEstimate)
		linear.DELETE("/issues/:issueId/estimate", projectHandler.DeleteEstimate)
	}

	return &Server{Router: r, Hub: hub}
}

// Run roda o hub até ctx ser cancelado
func (s *Server) Run(ctx context.Context) {
	s.Hub.Run(ctx)
}
