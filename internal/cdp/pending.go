/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package cdp

import (
	"encoding/json"
	"time"
)

// commandOutcome is the settled result of a pending command: either the raw
// result payload or an error (remote rejection, connection loss).
type commandOutcome struct {
	result json.RawMessage
	err    error
}

// pendingCommand is a command awaiting its response. The done channel has
// capacity one so the resolver never blocks; exclusive removal from the pending
// table (LoadAndDelete) guarantees a single resolver and therefore no
// double-resolve and no missed wakeup.
type pendingCommand struct {
	id     uint64
	sentAt time.Time
	done   chan commandOutcome
}

func newPendingCommand(id uint64) *pendingCommand {
	return &pendingCommand{
		id:     id,
		sentAt: time.Now(),
		done:   make(chan commandOutcome, 1),
	}
}

func (pc *pendingCommand) resolve(outcome commandOutcome) {
	pc.done <- outcome
}
