/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package cdp

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"
)

// Frame is one inbound unit from the transport. A Frame with a non-nil Err is
// the terminal close notification: it is delivered exactly once, after which
// the frame channel is closed.
type Frame struct {
	Data []byte
	Err  error
}

// Transport provides message I/O over the connection to the remote debugging
// endpoint. Send may be called from multiple goroutines; individual writes are
// serialized internally. Close is idempotent and safe to call from teardown
// even if the connection is already gone.
type Transport interface {
	// Send writes one outbound frame to the endpoint.
	// Returns ErrConnectionClosed after the transport has been closed.
	Send(ctx context.Context, payload []byte) error

	// Frames returns the inbound frame channel. The channel yields frames in
	// arrival order and is closed after a single terminal Frame carrying the
	// close error.
	Frames() <-chan Frame

	// Close closes the transport, releasing the connection. Any blocked reads
	// observe the close as the terminal frame.
	Close() error
}

type wsTransport struct {
	conn   *websocket.Conn
	frames chan Frame
	log    logr.Logger

	// writeMu protects concurrent writes to the connection
	writeMu sync.Mutex

	// closed indicates whether the transport has been closed
	closed bool
	mu     sync.Mutex
}

// dialTransport performs a single connection attempt against the endpoint URL
// and starts the reader goroutine on success.
func dialTransport(ctx context.Context, url string, dialer *websocket.Dialer, log logr.Logger) (*wsTransport, error) {
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
		}
	}

	conn, _, dialErr := dialer.DialContext(ctx, url, nil)
	if dialErr != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, dialErr)
	}

	t := &wsTransport{
		conn:   conn,
		frames: make(chan Frame, 1),
		log:    log,
	}
	go t.readLoop()

	return t, nil
}

func (t *wsTransport) Send(ctx context.Context, payload []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrConnectionClosed
	}
	t.mu.Unlock()

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	deadline := time.Time{}
	if d, hasDeadline := ctx.Deadline(); hasDeadline {
		deadline = d
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if err := t.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

func (t *wsTransport) Frames() <-chan Frame {
	return t.frames
}

func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	// Closing the connection is a best-effort operation, so we log failures as "info" entries.
	closeMsgErr := t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(100*time.Millisecond),
	)
	if closeMsgErr != nil {
		t.log.V(1).Info("failed to send close message to the endpoint", "Error", closeMsgErr)
	}

	closeErr := t.conn.Close()
	if closeErr != nil {
		t.log.V(1).Info("failed to close the endpoint connection", "Error", closeErr)
	}

	return nil
}

// readLoop pumps inbound messages into the frame channel. A read failure
// (including the close handshake and teardown via Close) produces the terminal
// frame, then the channel is closed.
func (t *wsTransport) readLoop() {
	defer close(t.frames)
	for {
		_, data, readErr := t.conn.ReadMessage()
		if readErr != nil {
			t.frames <- Frame{Err: readErr}
			return
		}
		t.frames <- Frame{Data: data}
	}
}
