package stream

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func startStreamApp(t *testing.T, hub *Hub) string {
	t.Helper()
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), hub)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() { _ = app.Shutdown() })

	return "ws://" + ln.Addr().String() + "/stream/ws/"
}

func waitRegistered(t *testing.T, hub *Hub, key string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		n := len(hub.clients[key])
		hub.mu.RUnlock()
		if n > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client for %q never registered", key)
}

func TestStreamHandlersUpgradeRequired(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), NewHub(nil, zerolog.Nop()))

	req := httptest.NewRequest(http.MethodGet, "/stream/ws/device-1", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode == http.StatusOK {
		t.Fatalf("expected non-200 for non-websocket request")
	}
}

func TestStreamHandlersWebsocketBroadcast(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop())
	base := startStreamApp(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(base+"device-1", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()
	waitRegistered(t, hub, "device-1")

	hub.Broadcast("device-1", []byte(`{"latitude":1}`))
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(msg) != `{"latitude":1}` {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestStreamHandlersClientDisconnectUnregisters(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop())
	base := startStreamApp(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(base+"device-2", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	waitRegistered(t, hub, "device-2")

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	conn.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		n := len(hub.clients["device-2"])
		hub.mu.RUnlock()
		if n == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client was not unregistered after disconnect")
}
