package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mesa-digital/api/internal/auth"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, topics ...string) *Client {
	set := make(map[string]bool, len(topics))
	for _, t := range topics {
		set[t] = true
	}
	return &Client{
		hub:    hub,
		topics: set,
		send:   make(chan []byte, 256),
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func TestHubRegistration(t *testing.T) {
	hub := startHub(t)

	client := mockClient(hub, "orders", "tables")

	// Register client
	hub.register <- client

	// Give hub time to process
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	for _, topic := range []string{"orders", "tables"} {
		if !hub.rooms[topic][client] {
			t.Fatalf("client not registered in %s room", topic)
		}
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := startHub(t)

	client := mockClient(hub, "orders", "order_items")

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	// Rooms should be cleaned up when empty
	if len(hub.rooms) != 0 {
		t.Fatalf("rooms not cleaned up after last client unregistered: %v", hub.rooms)
	}
	if _, ok := <-client.send; ok {
		t.Fatal("send channel should be closed")
	}
}

func TestBroadcastToSingleTopic(t *testing.T) {
	hub := startHub(t)

	kitchen := mockClient(hub, "orders")
	floor := mockClient(hub, "tables")

	hub.register <- kitchen
	hub.register <- floor
	time.Sleep(10 * time.Millisecond)

	hub.Notify("orders", "INSERT", map[string]string{"id": "order-1", "status": "pending"})

	select {
	case msg := <-kitchen.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Table != "orders" || received.Type != "INSERT" {
			t.Errorf("got %s/%s, want orders/INSERT", received.Table, received.Type)
		}
		if !strings.Contains(string(received.Record), `"order-1"`) {
			t.Errorf("unexpected record %s", received.Record)
		}
		if received.Timestamp.IsZero() {
			t.Error("expected commit timestamp")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("kitchen client did not receive message")
	}

	select {
	case <-floor.send:
		t.Fatal("tables subscriber should not receive orders events")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message received
	}
}

func TestBroadcastToMultipleClientsOnSameTopic(t *testing.T) {
	hub := startHub(t)

	clients := []*Client{mockClient(hub, "tables"), mockClient(hub, "tables"), mockClient(hub, "orders", "tables")}
	for _, c := range clients {
		hub.register <- c
	}
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(Event{Table: "tables", Type: "UPDATE", Record: json.RawMessage(`{"status":"occupied"}`)})

	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != "UPDATE" {
				t.Errorf("client%d: expected type UPDATE, got %s", i+1, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t)

	slow := &Client{hub: hub, topics: map[string]bool{"orders": true}, send: make(chan []byte, 1)}
	hub.register <- slow
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(Event{Table: "orders", Type: "UPDATE", Record: json.RawMessage(`{}`)})
	hub.Broadcast(Event{Table: "orders", Type: "UPDATE", Record: json.RawMessage(`{}`)})
	time.Sleep(20 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if hub.rooms["orders"][slow] {
		t.Fatal("slow client should be dropped once its buffer is full")
	}
}

func TestHubStopsOnContextCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	client := mockClient(hub, "orders")
	hub.register <- client
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("hub did not stop")
	}
	if _, ok := <-client.send; ok {
		t.Fatal("client channel should be closed on shutdown")
	}
}

func TestParseTopics(t *testing.T) {
	got := ParseTopics("orders, tables,bogus")
	if len(got) != 2 || !got["orders"] || !got["tables"] {
		t.Errorf("unexpected topics %v", got)
	}

	defaults := ParseTopics("")
	if !defaults["orders"] || !defaults["order_items"] || !defaults["tables"] {
		t.Errorf("unexpected default topics %v", defaults)
	}

	if got := ParseTopics("bogus"); len(got) != 0 {
		t.Errorf("expected no topics, got %v", got)
	}
}

func TestServeWS_RejectsMissingAndInvalidTokens(t *testing.T) {
	hub := startHub(t)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, "secret", w, r)
	})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/ws", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("missing token: got %d, want 401", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/ws?token=garbage", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("invalid token: got %d, want 401", rr.Code)
	}

	token, _ := auth.GenerateToken("secret", uuid.New(), "KITCHEN")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/ws?token="+token+"&topics=bogus", nil))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad topics: got %d, want 400", rr.Code)
	}
}

func TestServeWS_DeliversEvents(t *testing.T) {
	hub := startHub(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, "secret", w, r)
	}))
	defer server.Close()

	token, _ := auth.GenerateToken("secret", uuid.New(), "KITCHEN")
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?topics=orders&token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	time.Sleep(20 * time.Millisecond)

	hub.Notify("orders", "UPDATE", map[string]string{"status": "ready"})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var received Event
	if err := json.Unmarshal(msg, &received); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if received.Table != "orders" || received.Type != "UPDATE" {
		t.Errorf("got %s/%s, want orders/UPDATE", received.Table, received.Type)
	}
}
