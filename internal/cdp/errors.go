/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package cdp

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when a command is issued on a client that never
	// established its connection to the remote debugging endpoint.
	ErrNotConnected = errors.New("not connected to the browser debug endpoint")

	// ErrConnectionClosed is returned when the connection is closed (or closes)
	// while a command is in flight, and by commands issued after shutdown.
	ErrConnectionClosed = errors.New("connection to the browser debug endpoint is closed")

	// ErrCommandTimeout is returned when no response for a command arrives within
	// the configured command timeout.
	ErrCommandTimeout = errors.New("command timeout")

	// ErrSessionClosed is returned when a command is sent through a session that
	// has been detached.
	ErrSessionClosed = errors.New("session is closed")

	// ErrClientStarted is returned by Connect when the client was already started.
	ErrClientStarted = errors.New("client has already been started")
)

// RemoteError is an explicit command rejection by the remote endpoint.
// Code and Message are surfaced verbatim from the wire.
type RemoteError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote endpoint rejected the command: %s (code %d)", e.Message, e.Code)
}

// IsConnectionError returns true if the error indicates that the connection is
// not usable, as opposed to a failure scoped to a single command.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrNotConnected) || errors.Is(err, ErrConnectionClosed)
}
