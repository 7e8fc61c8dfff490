/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"github.com/microsoft/cdpmux/pkg/concurrency"
	"github.com/microsoft/cdpmux/pkg/syncmap"
)

const (
	CDPMUX_COMMAND_TIMEOUT_SECONDS = "CDPMUX_COMMAND_TIMEOUT_SECONDS" // Per-command response timeout override
	CDPMUX_CONNECT_TIMEOUT_SECONDS = "CDPMUX_CONNECT_TIMEOUT_SECONDS" // Initial connection timeout override
)

var (
	// How long a command waits for its response before failing with ErrCommandTimeout.
	// A silently-vanished remote session must not block a caller forever.
	defaultCommandTimeout = 30 * time.Second

	// Bound on the initial dial, including retries.
	defaultConnectTimeout = 10 * time.Second

	// WebSocket handshake timeout for a single dial attempt.
	defaultHandshakeTimeout = 5 * time.Second

	// How long teardown waits for the listener loop to acknowledge before
	// proceeding with failing the pending commands.
	drainTimeout = 5 * time.Second
)

type options struct {
	commandTimeout time.Duration
	connectTimeout time.Duration
	dialer         *websocket.Dialer
}

type Option func(*options)

// WithCommandTimeout sets the per-command response timeout.
func WithCommandTimeout(d time.Duration) Option {
	return func(o *options) {
		o.commandTimeout = d
	}
}

// WithConnectTimeout bounds the initial dial (including retries).
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		o.connectTimeout = d
	}
}

// WithDialer overrides the WebSocket dialer used for the connection.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// Client multiplexes commands, sessions, and event capture over a single
// connection to a browser remote-debugging endpoint.
//
// All state is instance-owned: multiple independent clients (and tests) can
// coexist in one process. A Client is not restartable; once closed, create a
// new one.
type Client struct {
	log         logr.Logger
	endpointURL string
	opts        options

	stateMu        sync.Mutex
	state          clientState
	neverConnected bool

	transport Transport

	// nextID is the identifier source for outbound commands: strictly
	// increasing, never reused, shared across sessions and the root connection.
	nextID  atomic.Uint64
	pending syncmap.Map[uint64, *pendingCommand]

	events   *EventStore
	sessions syncmap.Map[string, *Session]

	loopDone  *concurrency.AutoResetEvent
	closeOnce sync.Once
}

// NewClient creates a client for the given WebSocket endpoint URL
// (e.g. ws://127.0.0.1:9222/devtools/browser). The client does not connect
// until Connect is called.
func NewClient(endpointURL string, log logr.Logger, opts ...Option) *Client {
	o := options{
		commandTimeout: defaultCommandTimeout,
		connectTimeout: defaultConnectTimeout,
	}
	for _, apply := range opts {
		apply(&o)
	}

	return &Client{
		log:            log,
		endpointURL:    endpointURL,
		opts:           o,
		state:          stateInitial,
		neverConnected: true,
		events:         newEventStore(defaultEventRetentionCap),
		loopDone:       concurrency.NewAutoResetEvent(false),
	}
}

// Call sends a command on the root connection and waits for the matching
// response. params may be nil (an empty object is sent). If result is non-nil,
// the response's result payload is unmarshaled into it.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	return c.call(ctx, "", method, params, result)
}

func (c *Client) call(ctx context.Context, sessionID string, method string, params any, result any) error {
	if err := c.usableForCommands(); err != nil {
		return fmt.Errorf("%s command: %w", method, err)
	}

	if params == nil {
		params = struct{}{}
	}

	id := c.nextID.Add(1)
	payload, marshalErr := json.Marshal(command{
		ID:        id,
		Method:    method,
		Params:    params,
		SessionID: sessionID,
	})
	if marshalErr != nil {
		return fmt.Errorf("failed to encode %s command: %w", method, marshalErr)
	}

	pc := newPendingCommand(id)
	c.pending.Store(id, pc)

	// Re-check after registering: a teardown that swept the pending table
	// between the first check and the Store must not strand this command.
	if c.getState() != stateConnected {
		c.pending.LoadAndDelete(id)
		return fmt.Errorf("%s command: %w", method, c.disconnectedErr())
	}

	c.log.V(1).Info("sending command", "method", method, "id", id, "sessionId", sessionID)
	if sendErr := c.transport.Send(ctx, payload); sendErr != nil {
		c.pending.LoadAndDelete(id)
		return fmt.Errorf("failed to send %s command: %w", method, sendErr)
	}

	timeout := time.NewTimer(c.opts.commandTimeout)
	defer timeout.Stop()

	select {
	case outcome := <-pc.done:
		if outcome.err != nil {
			return fmt.Errorf("%s command: %w", method, outcome.err)
		}
		if result != nil {
			raw := outcome.result
			if len(raw) == 0 {
				raw = []byte("{}")
			}
			if err := json.Unmarshal(raw, result); err != nil {
				return fmt.Errorf("failed to decode %s result: %w", method, err)
			}
		}
		return nil

	case <-ctx.Done():
		c.pending.LoadAndDelete(id)
		return fmt.Errorf("%s command: %w", method, ctx.Err())

	case <-timeout.C:
		c.pending.LoadAndDelete(id)
		return fmt.Errorf("no response for %s command within %v: %w", method, c.opts.commandTimeout, ErrCommandTimeout)
	}
}

// usableForCommands verifies the client is in a state that can carry commands.
func (c *Client) usableForCommands() error {
	switch c.getState() {
	case stateConnected:
		return nil
	case stateInitial, stateConnecting:
		return ErrNotConnected
	default:
		return c.disconnectedErr()
	}
}

func (c *Client) disconnectedErr() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.neverConnected {
		return ErrNotConnected
	}
	return ErrConnectionClosed
}

// Events returns the buffered events for a category, oldest first.
func (c *Client) Events(category EventCategory) []Event {
	return c.events.Events(category)
}

// EventsFunc returns the buffered events for a category that satisfy the
// predicate, oldest first.
func (c *Client) EventsFunc(category EventCategory, predicate func(Event) bool) []Event {
	return c.events.EventsFunc(category, predicate)
}

func init() {
	if v, found := envSeconds(CDPMUX_COMMAND_TIMEOUT_SECONDS); found && v > 0 {
		defaultCommandTimeout = v
	}
	if v, found := envSeconds(CDPMUX_CONNECT_TIMEOUT_SECONDS); found && v > 0 {
		defaultConnectTimeout = v
	}
}

func envSeconds(name string) (time.Duration, bool) {
	raw, found := os.LookupEnv(name)
	if !found {
		return 0, false
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}
