package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cleberrangel/linear-pert-api/internal/logger"
	"github.com/cleberrangel/linear-pert-api/internal/metrics"
	"github.com/cleberrangel/linear-pert-api/internal/model"
	"github.com/cleberrangel/linear-pert-api/internal/pert"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Tipos de mensagem
const (
	TypeConnection     = "connection"
	TypePing           = "ping"
	TypePong           = "pong"
	TypePreview        = "estimate.preview"
	TypeSubscribe      = "subscribe"
	TypeUnsubscribe    = "unsubscribe"
	TypeSubscribed     = "subscribed"
	TypeUnsubscribed   = "unsubscribed"
	TypeProjectUpdated = "project.updated"
	TypeError          = "error"
)

// Previewer calcula a prévia de uma estimativa (validação + resultado)
type Previewer interface {
	Calculate(ctx context.Context, e pert.Estimate) model.CalculateResponse
}

// ProjectViewer monta a visão PERT de um projeto com o token do usuário
type ProjectViewer interface {
	ProjectPert(ctx context.Context, accessToken, projectID string) (*model.ProjectPert, error)
}

// Hub maintains the set of active clients and their project subscriptions
type Hub struct {
	// Registered clients by user ID
	clients map[string]map[*Client]bool

	// Subscribed clients by project ID
	projects map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mutex sync.RWMutex

	previewer Previewer
	viewer    ProjectViewer

	logger *zerolog.Logger
}

// Message represents a generic WebSocket message
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// inboundMessage é a mensagem recebida do cliente
type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// subscription é o payload de subscribe/unsubscribe
type subscription struct {
	ProjectID string `json:"project_id"`
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	// Timeout para montar a visão inicial de um projeto inscrito
	snapshotTimeout = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// NewHub creates a new WebSocket hub
func NewHub(previewer Previewer) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		projects:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		previewer:  previewer,
		logger:     logger.Global(),
	}
}

// SetProjectViewer define quem monta a visão inicial enviada no subscribe
func (h *Hub) SetProjectViewer(viewer ProjectViewer) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.viewer = viewer
}

// SetAllowedOrigins restringe o Origin aceito no upgrade. Vazio aceita apenas mesma origem.
func SetAllowedOrigins(origins ...string) {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}

	upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowed[origin] {
			return true
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}

// Run starts the hub's main loop until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return
		}
	}
}

// registerClient registers a new client
func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	if h.clients[client.UserID] == nil {
		h.clients[client.UserID] = make(map[*Client]bool)
	}
	h.clients[client.UserID][client] = true
	userConnections := len(h.clients[client.UserID])
	h.mutex.Unlock()
	client.registerOnce.Do(func() { close(client.registered) })

	metrics.Get().IncrementWSConnection()

	h.logger.Info().
		Str("user_id", client.UserID).
		Str("username", client.Username).
		Int("user_connections", userConnections).
		Msg("WebSocket client registered")

	client.SendMessage(Message{
		Type:      TypeConnection,
		Data:      map[string]string{"status": "connected"},
		Timestamp: time.Now(),
	})
}

// unregisterClient remove o cliente de todos os índices e fecha o canal de envio
func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	removed := h.removeLocked(client)
	h.mutex.Unlock()

	if removed {
		h.logger.Info().
			Str("user_id", client.UserID).
			Str("username", client.Username).
			Msg("WebSocket client unregistered")
	}
}

// removeLocked exige h.mutex travado para escrita
func (h *Hub) removeLocked(client *Client) bool {
	clients, ok := h.clients[client.UserID]
	if !ok || !clients[client] {
		return false
	}

	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, client.UserID)
	}

	for projectID := range client.projects {
		if subs, ok := h.projects[projectID]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.projects, projectID)
			}
		}
	}

	client.closed = true
	close(client.Send)
	metrics.Get().DecrementWSConnection()
	return true
}

// closeAll encerra todas as conexões
func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			h.removeLocked(client)
		}
	}
}

// Subscribe inscreve o cliente nas atualizações de um projeto.
// Retorna false se o cliente não está registrado no hub.
func (h *Hub) Subscribe(client *Client, projectID string) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.clients[client.UserID][client] {
		return false
	}

	if h.projects[projectID] == nil {
		h.projects[projectID] = make(map[*Client]bool)
	}
	h.projects[projectID][client] = true
	client.projects[projectID] = true
	return true
}

// Unsubscribe cancela a inscrição do cliente em um projeto
func (h *Hub) Unsubscribe(client *Client, projectID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	delete(client.projects, projectID)
	if subs, ok := h.projects[projectID]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.projects, projectID)
		}
	}
}

// PublishProject envia project.updated a todos os inscritos do projeto
func (h *Hub) PublishProject(update model.ProjectUpdate) {
	data, err := json.Marshal(Message{
		Type:      TypeProjectUpdated,
		Data:      update,
		Timestamp: time.Now(),
	})
	if err != nil {
		h.logger.Error().Err(err).Str("project_id", update.ProjectID).Msg("Failed to marshal project update")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	sent := 0
	for client := range h.projects[update.ProjectID] {
		select {
		case client.Send <- data:
			metrics.Get().IncrementWSMessageOut()
			sent++
		default:
			h.logger.Warn().
				Str("user_id", client.UserID).
				Str("project_id", update.ProjectID).
				Msg("Client send buffer full, closing connection")
			h.removeLocked(client)
		}
	}

	h.logger.Debug().
		Str("project_id", update.ProjectID).
		Str("action", update.Action).
		Int("subscribers", sent).
		Msg("Project update published")
}

// GetConnectionCount returns the total number of active connections
func (h *Hub) GetConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	count := 0
	for _, clients := range h.clients {
		count += len(clients)
	}
	return count
}

// GetUserConnectionCount returns the number of connections for a specific user
func (h *Hub) GetUserConnectionCount(userID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients[userID])
}

// GetSubscriberCount returns the number of clients subscribed to a project
func (h *Hub) GetSubscriberCount(projectID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.projects[projectID])
}

func (h *Hub) projectViewer() ProjectViewer {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.viewer
}
