package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cleberrangel/linear-pert-api/internal/logger"
	"github.com/cleberrangel/linear-pert-api/internal/metrics"
	"github.com/cleberrangel/linear-pert-api/internal/middleware"
	"github.com/cleberrangel/linear-pert-api/internal/pert"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Client is a middleman between the websocket connection and the hub
type Client struct {
	// The websocket connection
	conn *websocket.Conn

	// Buffered channel of outbound messages
	Send chan []byte

	// User identification
	UserID      string
	Username    string
	AccessToken string

	// Hub reference
	Hub *Hub

	// Connection metadata
	ConnectedAt time.Time
	LastPing    time.Time

	// Guarded by Hub.mutex
	projects map[string]bool
	closed   bool

	// Fechado quando o hub registra o cliente
	registered   chan struct{}
	registerOnce sync.Once

	ctx context.Context
}

// NewClient cria um cliente sem conexão associada
func NewClient(hub *Hub, userID, username, accessToken string) *Client {
	return &Client{
		Send:        make(chan []byte, 256),
		UserID:      userID,
		Username:    username,
		AccessToken: accessToken,
		Hub:         hub,
		ConnectedAt: time.Now(),
		LastPing:    time.Now(),
		projects:    make(map[string]bool),
		registered:  make(chan struct{}),
		ctx:         context.Background(),
	}
}

// ServeWS handles websocket requests from the peer.
// Deve rodar depois de middleware.RequireSession.
func (h *Hub) ServeWS(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Usuário não autenticado",
			"code":    "USER_NOT_AUTHENTICATED",
		})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := NewClient(h, userID, c.GetString(middleware.ContextUsername), c.GetString(middleware.ContextAccessToken))
	client.conn = conn
	// O contexto do request termina no upgrade; só os valores de log são mantidos
	client.ctx = logger.WithUserInfo(
		logger.WithRequestID(context.Background(), logger.GetRequestID(c.Request.Context())),
		userID, client.Username,
	)

	logger.AuditWebSocket(client.ctx, logger.AuditActionWSConnect, userID, c.ClientIP(), nil)

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(c.ClientIP())
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump(clientIP string) {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.conn.Close()
		logger.AuditWebSocket(c.ctx, logger.AuditActionWSDisconnect, c.UserID, clientIP, map[string]interface{}{
			"duration_s": time.Since(c.ConnectedAt).Seconds(),
		})
	}()

	// Mensagens só são lidas depois do registro, para o subscribe encontrar o cliente
	select {
	case <-c.registered:
	case <-c.Hub.done:
		return
	}

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.LastPing = time.Now()
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Get(c.ctx).Error().
					Err(err).
					Msg("WebSocket connection closed unexpectedly")
			}
			break
		}

		metrics.Get().IncrementWSMessageIn()
		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
// Cada mensagem vai em um frame próprio para o cliente poder fazer JSON.parse direto.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Client) handleMessage(data []byte) {
	log := logger.Get(c.ctx)

	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug().Err(err).Msg("Failed to unmarshal client message")
		c.sendError("mensagem inválida")
		return
	}

	switch msg.Type {
	case TypePing:
		c.SendMessage(Message{Type: TypePong, Timestamp: time.Now()})

	case TypePreview:
		c.handlePreview(msg.Data)

	case TypeSubscribe:
		c.handleSubscribe(msg.Data)

	case TypeUnsubscribe:
		var sub subscription
		if err := json.Unmarshal(msg.Data, &sub); err != nil || sub.ProjectID == "" {
			c.sendError("project_id obrigatório")
			return
		}
		c.Hub.Unsubscribe(c, sub.ProjectID)
		c.SendMessage(Message{Type: TypeUnsubscribed, Data: sub, Timestamp: time.Now()})

	default:
		log.Debug().Str("message_type", msg.Type).Msg("Unknown message type received from client")
		c.sendError("tipo de mensagem desconhecido: " + msg.Type)
	}
}

// handlePreview responde com validação e resultado, mesmo para estimativa inválida
func (c *Client) handlePreview(data json.RawMessage) {
	var e pert.Estimate
	if err := json.Unmarshal(data, &e); err != nil {
		c.sendError("estimativa inválida: esperado {optimistic, mostLikely, pessimistic}")
		return
	}

	if c.Hub.previewer == nil {
		c.sendError("prévia indisponível")
		return
	}

	c.SendMessage(Message{
		Type:      TypePreview,
		Data:      c.Hub.previewer.Calculate(c.ctx, e),
		Timestamp: time.Now(),
	})
}

// handleSubscribe confere o acesso ao projeto com o token do usuário e envia a visão atual
func (c *Client) handleSubscribe(data json.RawMessage) {
	var sub subscription
	if err := json.Unmarshal(data, &sub); err != nil || !middleware.ValidateID(sub.ProjectID) {
		c.sendError("project_id obrigatório")
		return
	}

	payload := map[string]interface{}{"project_id": sub.ProjectID}

	if viewer := c.Hub.projectViewer(); viewer != nil {
		ctx, cancel := context.WithTimeout(c.ctx, snapshotTimeout)
		defer cancel()

		view, err := viewer.ProjectPert(ctx, c.AccessToken, sub.ProjectID)
		if err != nil {
			logger.Get(c.ctx).Warn().Err(err).Str("project_id", sub.ProjectID).Msg("Subscribe recusado")
			c.sendError("não foi possível acessar o projeto " + sub.ProjectID)
			return
		}
		payload["project"] = view
	}

	if !c.Hub.Subscribe(c, sub.ProjectID) {
		c.sendError("conexão não registrada, inscrição em " + sub.ProjectID + " recusada")
		return
	}
	c.SendMessage(Message{Type: TypeSubscribed, Data: payload, Timestamp: time.Now()})
}

func (c *Client) sendError(message string) {
	c.SendMessage(Message{
		Type:      TypeError,
		Data:      map[string]string{"error": message},
		Timestamp: time.Now(),
	})
}

// SendMessage sends a message to this specific client
func (c *Client) SendMessage(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		logger.Get(c.ctx).Error().Err(err).Msg("Failed to marshal message for client")
		return
	}

	c.Hub.mutex.RLock()
	if c.closed {
		c.Hub.mutex.RUnlock()
		return
	}

	select {
	case c.Send <- data:
		c.Hub.mutex.RUnlock()
		metrics.Get().IncrementWSMessageOut()
	default:
		c.Hub.mutex.RUnlock()
		logger.Get(c.ctx).Warn().Msg("Client send channel is full, closing connection")
		c.Hub.unregisterClient(c)
	}
}
