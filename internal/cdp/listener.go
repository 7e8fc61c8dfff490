/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package cdp

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/microsoft/cdpmux/pkg/resiliency"
)

type clientState uint32

const (
	stateInitial    clientState = 0x1
	stateConnecting clientState = 0x2
	stateConnected  clientState = 0x4
	stateDraining   clientState = 0x8
	stateClosed     clientState = 0x10
	stateAny        clientState = 0xFFFFFFFF
)

func (s clientState) String() string {
	switch s {
	case stateInitial:
		return "Initial"
	case stateConnecting:
		return "Connecting"
	case stateConnected:
		return "Connected"
	case stateDraining:
		return "Draining"
	case stateClosed:
		return "Closed"
	case stateAny:
		return "Any"
	default:
		return "Unknown"
	}
}

func (c *Client) getState() clientState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// Transition the client to a new state, if the current state matches the expected state.
// Returns true if the client transitioned to the new state ONLY.
// If the transition was not successful (expected state does not match current state),
// or if the new state is the same as the current state, it returns false.
func (c *Client) setState(expectedState, newState clientState) bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.state == newState {
		return false
	}
	if c.state&expectedState != 0 {
		c.state = newState
		return true
	}
	return false
}

// Connect dials the remote debugging endpoint and starts the listener loop.
//
// A dial failure is not fatal to the process: the client transitions to Closed
// in "never connected" mode, the error is returned, and every subsequent
// command fails fast with ErrNotConnected.
func (c *Client) Connect(ctx context.Context) error {
	if !c.setState(stateInitial, stateConnecting) {
		return ErrClientStarted
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, c.opts.connectTimeout)
	defer cancelDial()

	retryPolicy := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(100*time.Millisecond),
		backoff.WithMaxInterval(1*time.Second),
	)

	transport, dialErr := resiliency.RetryGet(dialCtx, retryPolicy, func() (*wsTransport, error) {
		t, err := dialTransport(dialCtx, c.endpointURL, c.opts.dialer, c.log)
		if err != nil {
			c.log.V(1).Info("failed to connect to the browser debug endpoint, retrying...", "url", c.endpointURL, "Error", err)
			return nil, err
		}
		return t, nil
	})
	if dialErr != nil {
		c.setState(stateAny, stateClosed)
		c.log.Error(dialErr, "failed to connect to the browser debug endpoint; commands will fail until a new client is created", "url", c.endpointURL)
		return fmt.Errorf("failed to connect to %s: %w", c.endpointURL, dialErr)
	}

	c.stateMu.Lock()
	c.transport = transport
	c.neverConnected = false
	c.stateMu.Unlock()

	if !c.setState(stateConnecting, stateConnected) {
		// Close raced with Connect; do not leak the fresh connection.
		_ = transport.Close()
		return ErrConnectionClosed
	}

	c.log.Info("connected to the browser debug endpoint", "url", c.endpointURL)
	go c.run()

	return nil
}

// run is the single inbound-frame consumption loop. It feeds the correlator
// and the event store, and never terminates on a malformed frame; only the
// transport's terminal close notification ends it.
func (c *Client) run() {
	for frame := range c.transport.Frames() {
		if frame.Err != nil {
			if c.getState() == stateConnected {
				c.log.V(1).Info("connection closed by the remote endpoint", "Error", frame.Err)
			}
			break
		}
		c.dispatch(frame.Data)
	}

	c.loopDone.SetAndFreeze()

	// Remote-initiated close: run the teardown sequence so pending commands
	// resolve instead of hanging. No-op when Close initiated the shutdown.
	_ = c.Close()
}

// dispatch routes one inbound frame to exactly one of the correlator and the
// event store. Malformed frames are logged and dropped.
func (c *Client) dispatch(data []byte) {
	env, decodeErr := decodeEnvelope(data)
	if decodeErr != nil {
		c.log.Error(decodeErr, "dropping undecodable inbound frame")
		return
	}

	switch {
	case env.ID != nil:
		c.resolvePending(*env.ID, env)
	case env.Method != "":
		c.events.record(env.Method, env.Params)
	default:
		c.log.V(1).Info("dropping inbound frame carrying neither identifier nor method")
	}
}

func (c *Client) resolvePending(id uint64, env *inboundEnvelope) {
	pc, found := c.pending.LoadAndDelete(id)
	if !found {
		// The caller gave up (timeout or cancellation) before the response arrived.
		c.log.V(1).Info("no pending command for response identifier", "id", id)
		return
	}

	if env.Error != nil {
		pc.resolve(commandOutcome{err: env.Error})
	} else {
		pc.resolve(commandOutcome{result: env.Result})
	}
}

// Close tears the client down: cancel the listener loop, await its
// acknowledgment, resolve every still-pending command with
// ErrConnectionClosed, invalidate open sessions, and release the transport.
// The sequence runs exactly once and is safe on every exit path, including a
// client that never connected.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		wasConnected := c.setState(stateConnected, stateDraining)

		if c.transportRef() != nil {
			_ = c.transportRef().Close()
			if wasConnected {
				if drained := resiliency.RunWithTimeout(func() { <-c.loopDone.WaitChannel() }, drainTimeout); !drained {
					c.log.Info("timed out waiting for the listener loop to drain")
				}
			}
		}

		if stillPending := c.pending.Len(); stillPending > 0 {
			c.log.V(1).Info("failing commands still pending at close", "count", stillPending)
		}
		c.failPending(ErrConnectionClosed)
		c.invalidateSessions()
		c.setState(stateAny, stateClosed)
		c.log.V(1).Info("client closed")
	})
	return nil
}

func (c *Client) transportRef() Transport {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.transport
}

// failPending resolves every outstanding command with the given error so no
// caller is left suspended after the connection is gone.
func (c *Client) failPending(err error) {
	c.pending.Range(func(id uint64, _ *pendingCommand) bool {
		if pc, found := c.pending.LoadAndDelete(id); found {
			pc.resolve(commandOutcome{err: err})
		}
		return true
	})
}
