/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

/*
Package cdp multiplexes many concurrent debug-protocol commands, scoped target
sessions, and unsolicited event capture over a single persistent WebSocket
connection to a browser remote-debugging endpoint.

# Architecture Overview

One Client owns one connection and its entire lifecycle. A single listener
goroutine consumes inbound frames and routes each of them to exactly one
destination: frames carrying a message identifier resolve the pending command
registered under that identifier; frames carrying a method name but no
identifier are buffered as events, bucketed by the method's namespace. Frames
matching neither shape are logged and dropped.

# Key Components

  - Transport: the WebSocket connection; Send plus a channel of inbound frames
    that terminates with a single close notification.
  - Client: allocates monotonically increasing command identifiers, correlates
    responses to callers, and runs the lifecycle state machine
    (Initial -> Connecting -> Connected -> Draining -> Closed).
  - EventStore: bounded per-category event buffers (most recent 1000 per
    category, FIFO eviction), queried in arrival order.
  - Session: a scoped channel to a single target, created via
    Target.attachToTarget; a ScopedSender stamps the session identifier onto
    every command it sends.

# Lifecycle

Connect dials the endpoint (with bounded retry) and starts the listener loop.
If the dial fails the Client degrades rather than crashes: it transitions
straight to Closed and every subsequent command fails fast with
ErrNotConnected. Close runs exactly once on every exit path: it closes the
transport, waits for the listener loop to acknowledge, resolves every still
pending command with ErrConnectionClosed so no caller is left suspended, and
invalidates open sessions.

The protocol payloads are opaque to this package: method names and parameters
are shipped through as-is, and event parameters are retained as raw JSON.
*/
package cdp
