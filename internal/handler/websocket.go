package handler

import (
	"net/http"

	"github.com/cleberrangel/linear-pert-api/internal/middleware"
	"github.com/cleberrangel/linear-pert-api/internal/model"
	"github.com/cleberrangel/linear-pert-api/internal/websocket"
	"github.com/gin-gonic/gin"
)

// WebSocketHandler handles WebSocket-related HTTP requests
type WebSocketHandler struct {
	hub *websocket.Hub
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *websocket.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
	}
}

// HandleConnection faz o upgrade; exige middleware.RequireSession antes
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	h.hub.ServeWS(c)
}

// Subscribers retorna quantas conexões acompanham o projeto e quantas são do usuário
// @Summary      Inscritos do projeto
// @Tags         websocket
// @Produce      json
// @Param        projectId path string true "Projeto"
// @Success      200 {object} model.Response
// @Router       /api/v1/projects/{projectId}/subscribers [get]
func (h *WebSocketHandler) Subscribers(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	userConnections := h.hub.GetUserConnectionCount(userID)

	c.JSON(http.StatusOK, model.Response{
		Success: true,
		Data: gin.H{
			"project_id":       c.Param("projectId"),
			"subscribers":      h.hub.GetSubscriberCount(c.Param("projectId")),
			"user_connections": userConnections,
			"is_connected":     userConnections > 0,
		},
	})
}
