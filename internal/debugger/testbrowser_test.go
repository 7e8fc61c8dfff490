package debugger

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

	"github.com/microsoft/cdpmux/internal/cdp"
)

func testLogger(t *testing.T) logr.Logger {
	return testr.NewWithOptions(t, testr.Options{Verbosity: 1})
}

type wireCommand struct {
	ID        uint64          `json:"id"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params"`
	SessionID string          `json:"sessionId"`
}

// fakeBrowser is a scripted remote debugging endpoint: every incoming command
// is answered by the handler, and every serviced command is recorded for
// later assertions. A handler result of *cdp.RemoteError becomes an error
// response; anything else is sent as the result payload.
type fakeBrowser struct {
	t       *testing.T
	server  *httptest.Server
	handler func(wireCommand) any

	mu       sync.Mutex
	conn     *websocket.Conn
	serviced []wireCommand

	connected chan struct{}
}

func newFakeBrowser(t *testing.T, handler func(wireCommand) any) *fakeBrowser {
	t.Helper()

	fb := &fakeBrowser{
		t:         t,
		handler:   handler,
		connected: make(chan struct{}),
	}

	upgrader := websocket.Upgrader{}
	fb.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, upgradeErr := upgrader.Upgrade(w, r, nil)
		if upgradeErr != nil {
			return
		}

		fb.mu.Lock()
		fb.conn = conn
		fb.mu.Unlock()
		close(fb.connected)

		for {
			_, data, readErr := conn.ReadMessage()
			if readErr != nil {
				return
			}
			var cmd wireCommand
			if unmarshalErr := json.Unmarshal(data, &cmd); unmarshalErr != nil {
				continue
			}

			var response map[string]any
			switch result := fb.handler(cmd).(type) {
			case *cdp.RemoteError:
				response = map[string]any{"id": cmd.ID, "error": result}
			case nil:
				response = map[string]any{"id": cmd.ID, "result": map[string]any{}}
			default:
				response = map[string]any{"id": cmd.ID, "result": result}
			}

			fb.mu.Lock()
			fb.serviced = append(fb.serviced, cmd)
			writeErr := conn.WriteJSON(response)
			fb.mu.Unlock()
			if writeErr != nil {
				return
			}
		}
	}))
	t.Cleanup(fb.server.Close)

	return fb
}

func (fb *fakeBrowser) URL() string {
	return "ws" + strings.TrimPrefix(fb.server.URL, "http")
}

// SendEvent pushes an unsolicited event notification to the client.
func (fb *fakeBrowser) SendEvent(method string, params any) {
	fb.t.Helper()
	select {
	case <-fb.connected:
	case <-time.After(5 * time.Second):
		fb.t.Fatal("timed out waiting for the client to connect")
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	require.NoError(fb.t, fb.conn.WriteJSON(map[string]any{"method": method, "params": params}))
}

// Serviced returns the commands answered so far with the given method, in
// arrival order. An empty method matches everything.
func (fb *fakeBrowser) Serviced(method string) []wireCommand {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	var matched []wireCommand
	for _, cmd := range fb.serviced {
		if method == "" || cmd.Method == method {
			matched = append(matched, cmd)
		}
	}
	return matched
}

// newDebugService connects a client against the scripted browser and wraps it
// in a Service, with teardown registered on the test.
func newDebugService(t *testing.T, handler func(wireCommand) any) (*Service, *fakeBrowser) {
	t.Helper()

	fb := newFakeBrowser(t, handler)
	client := cdp.NewClient(fb.URL(), testLogger(t))
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() { _ = client.Close() })

	return NewService(client, testLogger(t)), fb
}
