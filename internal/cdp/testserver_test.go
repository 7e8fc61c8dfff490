package cdp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/testr"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) logr.Logger {
	return testr.NewWithOptions(t, testr.Options{Verbosity: 1})
}

// wireCommand is a command envelope as observed by the fake endpoint.
type wireCommand struct {
	ID        uint64          `json:"id"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params"`
	SessionID string          `json:"sessionId"`
}

// fakeEndpoint is an in-process remote debugging endpoint. It accepts a single
// WebSocket connection, exposes every command the client sends, and lets tests
// write arbitrary responses and events back.
type fakeEndpoint struct {
	t        *testing.T
	server   *httptest.Server
	commands chan wireCommand

	mu   sync.Mutex
	conn *websocket.Conn

	connected chan struct{}
}

func newFakeEndpoint(t *testing.T) *fakeEndpoint {
	t.Helper()

	fe := &fakeEndpoint{
		t:         t,
		commands:  make(chan wireCommand, 64),
		connected: make(chan struct{}),
	}

	upgrader := websocket.Upgrader{}
	fe.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, upgradeErr := upgrader.Upgrade(w, r, nil)
		if upgradeErr != nil {
			return
		}

		fe.mu.Lock()
		fe.conn = conn
		fe.mu.Unlock()
		close(fe.connected)

		for {
			_, data, readErr := conn.ReadMessage()
			if readErr != nil {
				return
			}
			var cmd wireCommand
			if unmarshalErr := json.Unmarshal(data, &cmd); unmarshalErr != nil {
				continue
			}
			fe.commands <- cmd
		}
	}))
	t.Cleanup(fe.server.Close)

	return fe
}

func (fe *fakeEndpoint) URL() string {
	return "ws" + strings.TrimPrefix(fe.server.URL, "http")
}

// NextCommand returns the next command the client sent, failing the test if
// none arrives in time.
func (fe *fakeEndpoint) NextCommand() wireCommand {
	fe.t.Helper()
	select {
	case cmd := <-fe.commands:
		return cmd
	case <-time.After(5 * time.Second):
		fe.t.Fatal("timed out waiting for a command from the client")
		return wireCommand{}
	}
}

// Send writes raw JSON to the client.
func (fe *fakeEndpoint) Send(payload string) {
	fe.t.Helper()
	select {
	case <-fe.connected:
	case <-time.After(5 * time.Second):
		fe.t.Fatal("timed out waiting for the client to connect")
	}

	fe.mu.Lock()
	defer fe.mu.Unlock()
	require.NoError(fe.t, fe.conn.WriteMessage(websocket.TextMessage, []byte(payload)))
}

// SendJSON marshals v and writes it to the client.
func (fe *fakeEndpoint) SendJSON(v any) {
	fe.t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(fe.t, err)
	fe.Send(string(payload))
}

// RespondResult sends a success response for the given identifier.
func (fe *fakeEndpoint) RespondResult(id uint64, result any) {
	fe.t.Helper()
	fe.SendJSON(map[string]any{"id": id, "result": result})
}

// RespondError sends an error response for the given identifier.
func (fe *fakeEndpoint) RespondError(id uint64, code int, message string) {
	fe.t.Helper()
	fe.SendJSON(map[string]any{"id": id, "error": map[string]any{"code": code, "message": message}})
}

// SendEvent sends an unsolicited event notification.
func (fe *fakeEndpoint) SendEvent(method string, params any) {
	fe.t.Helper()
	fe.SendJSON(map[string]any{"method": method, "params": params})
}

// AutoRespond services every incoming command with the handler's return value
// until the test ends: a *RemoteError becomes an error response, anything else
// a result payload. It returns a channel of the serviced commands, in order.
func (fe *fakeEndpoint) AutoRespond(handler func(wireCommand) any) <-chan wireCommand {
	observed := make(chan wireCommand, 64)
	stop := make(chan struct{})
	fe.t.Cleanup(func() { close(stop) })

	go func() {
		for {
			select {
			case cmd := <-fe.commands:
				switch result := handler(cmd).(type) {
				case *RemoteError:
					fe.RespondError(cmd.ID, result.Code, result.Message)
				case nil:
					fe.RespondResult(cmd.ID, map[string]any{})
				default:
					fe.RespondResult(cmd.ID, result)
				}
				observed <- cmd
			case <-stop:
				return
			}
		}
	}()

	return observed
}

// CloseConn closes the endpoint side of the WebSocket connection abruptly.
func (fe *fakeEndpoint) CloseConn() {
	fe.t.Helper()
	select {
	case <-fe.connected:
	case <-time.After(5 * time.Second):
		fe.t.Fatal("timed out waiting for the client to connect")
	}

	fe.mu.Lock()
	defer fe.mu.Unlock()
	_ = fe.conn.Close()
}

// connectedClient dials a client against the fake endpoint and registers
// cleanup. Tests that need custom options pass them through.
func connectedClient(t *testing.T, fe *fakeEndpoint, opts ...Option) *Client {
	t.Helper()

	client := NewClient(fe.URL(), testLogger(t), opts...)
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() { _ = client.Close() })
	return client
}
