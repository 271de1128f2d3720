// Package testhelpers provides common utilities and helper functions for testing the GameChat server.
//
// It wraps the boilerplate of starting a hub behind a test HTTP server, dialing
// WebSocket clients with an allowed origin, and speaking the JSON envelope
// protocol from the client side.
package testhelpers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/gamechat/internal/server"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// TestOrigin is allowed by the default configuration.
const TestOrigin = "http://localhost:8080"

// DefaultTimeout bounds every blocking read in the helpers.
const DefaultTimeout = 2 * time.Second

// Envelope is the client-side view of a protocol frame.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// StartServer applies the configuration, runs a hub and serves its routes
// from an httptest server. Both are stopped when the test ends.
func StartServer(t *testing.T, customize func(cfg *server.Config)) (*server.Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := server.NewConfig()
	if customize != nil {
		customize(cfg)
	}
	server.SetConfig(cfg)

	hub := server.NewHub()
	server.StartHub(hub)
	testServer := httptest.NewServer(server.SetupRoutes(hub))

	t.Cleanup(func() {
		_ = hub.Shutdown(5 * time.Second)
		testServer.Close()
		server.SetConfig(nil)
	})
	return hub, testServer
}

// WebSocketURL converts an http test server URL to its /ws endpoint.
func WebSocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// ConnectWebSocket dials url with the given Origin header. An empty origin
// sends none.
func ConnectWebSocket(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// MustConnect dials the server's WebSocket endpoint with TestOrigin and
// closes the connection when the test ends.
func MustConnect(t *testing.T, serverURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := ConnectWebSocket(WebSocketURL(serverURL), TestOrigin)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendIntent writes one envelope.
func SendIntent(conn *websocket.Conn, intentType string, payload any) error {
	return conn.WriteJSON(map[string]any{"type": intentType, "payload": payload})
}

// MustSend writes one envelope and fails the test on error.
func MustSend(t *testing.T, conn *websocket.Conn, intentType string, payload any) {
	t.Helper()
	if err := SendIntent(conn, intentType, payload); err != nil {
		t.Fatalf("Failed to send %s: %v", intentType, err)
	}
}

// ReadEnvelope reads the next frame within timeout.
func ReadEnvelope(conn *websocket.Conn, timeout time.Duration) (Envelope, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Envelope{}, err
	}
	var env Envelope
	err := conn.ReadJSON(&env)
	return env, err
}

// ReadUntil skips frames until one of eventType arrives and decodes its
// payload into dst when dst is not nil.
func ReadUntil(t *testing.T, conn *websocket.Conn, eventType string, dst any) {
	t.Helper()
	deadline := time.Now().Add(DefaultTimeout)
	for time.Now().Before(deadline) {
		env, err := ReadEnvelope(conn, time.Until(deadline))
		if err != nil {
			t.Fatalf("Failed waiting for %s: %v", eventType, err)
		}
		if env.Type != eventType {
			continue
		}
		if dst != nil {
			if err := json.Unmarshal(env.Payload, dst); err != nil {
				t.Fatalf("Failed to decode %s payload: %v", eventType, err)
			}
		}
		return
	}
	t.Fatalf("Timed out waiting for %s", eventType)
}

// JoinAs sends a join intent and returns the session the server assigned.
func JoinAs(t *testing.T, conn *websocket.Conn, name string) server.SessionInit {
	t.Helper()
	MustSend(t, conn, server.IntentJoin, server.JoinPayload{Name: name})
	var init server.SessionInit
	ReadUntil(t, conn, server.EventSessionInit, &init)
	return init
}

// ExpectNoMessage fails if a frame arrives within timeout.
func ExpectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	env, err := ReadEnvelope(conn, timeout)
	if err == nil {
		t.Fatalf("Expected no message, but received %s", env.Type)
	}
	if IsTimeout(err) {
		return
	}
	t.Fatalf("Unexpected error while waiting for absence of message: %v", err)
}

// IsTimeout reports whether err is a read deadline expiry.
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// MakeRequest creates and executes an HTTP request, returning the response.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
