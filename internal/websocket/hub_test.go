package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cleberrangel/linear-pert-api/internal/middleware"
	"github.com/cleberrangel/linear-pert-api/internal/model"
	"github.com/cleberrangel/linear-pert-api/internal/pert"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type testPreviewer struct{}

func (testPreviewer) Calculate(ctx context.Context, e pert.Estimate) model.CalculateResponse {
	return model.CalculateResponse{Validation: pert.Validate(e), Result: pert.Calculate(e)}
}

type testViewer struct{}

func (testViewer) ProjectPert(ctx context.Context, accessToken, projectID string) (*model.ProjectPert, error) {
	if projectID == "forbidden" {
		return nil, model.ErrNotFound
	}
	return &model.ProjectPert{ProjectID: projectID, TotalTasks: 1}, nil
}

// drainWelcomeMessage drains the welcome message sent during client registration
func drainWelcomeMessage(t *testing.T, client *Client) {
	t.Helper()
	select {
	case <-client.Send:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("welcome message not sent")
	}
}

func newRegisteredClient(t *testing.T, hub *Hub, userID string) *Client {
	t.Helper()
	client := NewClient(hub, userID, userID, "tok-"+userID)
	hub.registerClient(client)
	drainWelcomeMessage(t, client)
	return client
}

func readMessage(t *testing.T, ch <-chan []byte) Message {
	t.Helper()
	select {
	case data := <-ch:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("invalid message %s: %v", data, err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	return Message{}
}

// **Property 8: Project updates reach only subscribers**
// Para qualquer conjunto de inscrições, PublishProject entrega a mensagem
// exatamente aos clientes inscritos no projeto
func TestPublishReachesOnlySubscribers(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("publish is routed by project", prop.ForAll(
		func(assignments []int) bool {
			hub := NewHub(testPreviewer{})

			clients := make([]*Client, len(assignments))
			for i, project := range assignments {
				client := NewClient(hub, fmt.Sprintf("u%d", i%3), "", "")
				hub.registerClient(client)
				<-client.Send
				hub.Subscribe(client, fmt.Sprintf("p%d", project))
				clients[i] = client
			}

			hub.PublishProject(model.ProjectUpdate{ProjectID: "p0", Action: model.ActionEstimateSaved})

			for i, project := range assignments {
				got := len(clients[i].Send)
				if project == 0 && got != 1 {
					return false
				}
				if project != 0 && got != 0 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 3)),
	))

	properties.TestingRun(t)
}

func TestHubRegistrationAndCleanup(t *testing.T) {
	hub := NewHub(testPreviewer{})

	a := newRegisteredClient(t, hub, "user-1")
	b := newRegisteredClient(t, hub, "user-1")
	c := newRegisteredClient(t, hub, "user-2")

	hub.Subscribe(a, "p1")
	hub.Subscribe(c, "p1")

	if hub.GetConnectionCount() != 3 || hub.GetUserConnectionCount("user-1") != 2 {
		t.Fatalf("connections = %d, user-1 = %d", hub.GetConnectionCount(), hub.GetUserConnectionCount("user-1"))
	}
	if hub.GetSubscriberCount("p1") != 2 {
		t.Fatalf("subscribers = %d, want 2", hub.GetSubscriberCount("p1"))
	}

	hub.unregisterClient(a)
	if hub.GetSubscriberCount("p1") != 1 || hub.GetUserConnectionCount("user-1") != 1 {
		t.Error("unregister should drop subscriptions and connection")
	}
	if _, ok := <-a.Send; ok {
		t.Error("Send channel should be closed")
	}

	// Segundo unregister é inofensivo
	hub.unregisterClient(a)
	a.SendMessage(Message{Type: TypePing})

	hub.Unsubscribe(c, "p1")
	if hub.GetSubscriberCount("p1") != 0 {
		t.Error("unsubscribe should remove the client")
	}

	// Cliente não registrado não pode se inscrever
	stray := NewClient(hub, "user-3", "", "")
	hub.Subscribe(stray, "p1")
	if hub.GetSubscriberCount("p1") != 0 {
		t.Error("unregistered client must not subscribe")
	}

	hub.unregisterClient(b)
	hub.unregisterClient(c)
	if hub.GetConnectionCount() != 0 {
		t.Errorf("connections = %d, want 0", hub.GetConnectionCount())
	}
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	hub := NewHub(testPreviewer{})
	client := newRegisteredClient(t, hub, "user-1")
	hub.Subscribe(client, "p1")

	for i := 0; i < cap(client.Send)+1; i++ {
		hub.PublishProject(model.ProjectUpdate{ProjectID: "p1"})
	}

	if hub.GetConnectionCount() != 0 || hub.GetSubscriberCount("p1") != 0 {
		t.Error("client with full buffer should be removed")
	}
}

func TestHandleMessage(t *testing.T) {
	hub := NewHub(testPreviewer{})
	hub.SetProjectViewer(testViewer{})
	client := newRegisteredClient(t, hub, "user-1")

	tests := []struct {
		name     string
		input    string
		wantType string
		check    func(t *testing.T, msg Message)
	}{
		{"ping", `{"type":"ping"}`, TypePong, nil},
		{"preview valid", `{"type":"estimate.preview","data":{"optimistic":2,"mostLikely":4,"pessimistic":8}}`, TypePreview,
			func(t *testing.T, msg Message) {
				data := msg.Data.(map[string]interface{})
				result := data["result"].(map[string]interface{})
				if result["standardDeviation"].(float64) != 1 {
					t.Errorf("standardDeviation = %v", result["standardDeviation"])
				}
			}},
		{"preview invalid still calculates", `{"type":"estimate.preview","data":{"optimistic":8,"mostLikely":4,"pessimistic":2}}`, TypePreview,
			func(t *testing.T, msg Message) {
				data := msg.Data.(map[string]interface{})
				validation := data["validation"].(map[string]interface{})
				if validation["valid"].(bool) {
					t.Error("expected invalid")
				}
				if data["result"] == nil {
					t.Error("result must be present")
				}
			}},
		{"subscribe", `{"type":"subscribe","data":{"project_id":"p1"}}`, TypeSubscribed,
			func(t *testing.T, msg Message) {
				data := msg.Data.(map[string]interface{})
				if data["project"] == nil {
					t.Error("subscribe should carry the current project view")
				}
			}},
		{"subscribe forbidden", `{"type":"subscribe","data":{"project_id":"forbidden"}}`, TypeError, nil},
		{"subscribe without id", `{"type":"subscribe","data":{}}`, TypeError, nil},
		{"unsubscribe", `{"type":"unsubscribe","data":{"project_id":"p1"}}`, TypeUnsubscribed, nil},
		{"unknown", `{"type":"shout"}`, TypeError, nil},
		{"garbage", `not json`, TypeError, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client.handleMessage([]byte(tt.input))
			msg := readMessage(t, client.Send)
			if msg.Type != tt.wantType {
				t.Fatalf("type = %q, want %q (%+v)", msg.Type, tt.wantType, msg.Data)
			}
			if tt.check != nil {
				tt.check(t, msg)
			}
		})
	}

	if hub.GetSubscriberCount("forbidden") != 0 {
		t.Error("forbidden project must not be subscribed")
	}
}

func TestSubscribeBeforeRegistrationIsRejected(t *testing.T) {
	hub := NewHub(testPreviewer{})
	hub.SetProjectViewer(testViewer{})

	client := NewClient(hub, "user-1", "Ada", "tok")
	if hub.Subscribe(client, "p1") {
		t.Error("Subscribe() = true for a client the hub never registered")
	}

	client.handleMessage([]byte(`{"type":"subscribe","data":{"project_id":"p1"}}`))
	if msg := readMessage(t, client.Send); msg.Type != TypeError {
		t.Fatalf("reply = %q, want error", msg.Type)
	}
	if hub.GetSubscriberCount("p1") != 0 {
		t.Error("unregistered client must not be subscribed")
	}

	select {
	case <-client.registered:
		t.Fatal("registered closed before registerClient")
	default:
	}

	hub.registerClient(client)
	drainWelcomeMessage(t, client)
	select {
	case <-client.registered:
	default:
		t.Fatal("registerClient must release the read pump")
	}
	if !hub.Subscribe(client, "p1") || hub.GetSubscriberCount("p1") != 1 {
		t.Error("registered client should subscribe")
	}
}

func TestServeWSEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hub := NewHub(testPreviewer{})
	hub.SetProjectViewer(testViewer{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		if c.Query("anon") == "" {
			c.Set(middleware.ContextUserID, "user-1")
			c.Set(middleware.ContextUsername, "Ada")
			c.Set(middleware.ContextAccessToken, "tok")
		}
		c.Next()
	}, hub.ServeWS)

	server := httptest.NewServer(r)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	// Sem sessão
	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?anon=1", nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous dial should fail with 401, got %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	read := func() Message {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		return msg
	}

	if msg := read(); msg.Type != TypeConnection {
		t.Fatalf("first message = %q, want connection", msg.Type)
	}

	conn.WriteJSON(map[string]interface{}{"type": "subscribe", "data": map[string]string{"project_id": "p1"}})
	if msg := read(); msg.Type != TypeSubscribed {
		t.Fatalf("subscribe reply = %q", msg.Type)
	}

	hub.PublishProject(model.ProjectUpdate{ProjectID: "p1", IssueID: "i1", Action: model.ActionEstimateSaved})
	msg := read()
	if msg.Type != TypeProjectUpdated {
		t.Fatalf("push = %q, want project.updated", msg.Type)
	}
	if data := msg.Data.(map[string]interface{}); data["issue_id"] != "i1" {
		t.Errorf("unexpected update %+v", data)
	}

	cancel()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				t.Logf("connection ended with %v", err)
			}
			break
		}
	}
}
