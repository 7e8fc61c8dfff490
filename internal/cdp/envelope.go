/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package cdp

import (
	"encoding/json"
	"fmt"
)

// command is the outbound wire envelope:
// {"id": <uint>, "method": "<Namespace.Method>", "params": {...}, "sessionId"?: "<string>"}
type command struct {
	ID        uint64 `json:"id"`
	Method    string `json:"method"`
	Params    any    `json:"params"`
	SessionID string `json:"sessionId,omitempty"`
}

// inboundEnvelope covers both inbound shapes: responses carry an identifier and
// either a result or an error object; events carry a method name and no identifier.
type inboundEnvelope struct {
	ID        *uint64         `json:"id"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params"`
	Result    json.RawMessage `json:"result"`
	Error     *RemoteError    `json:"error"`
	SessionID string          `json:"sessionId"`
}

func decodeEnvelope(data []byte) (*inboundEnvelope, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode inbound frame: %w", err)
	}
	return &env, nil
}
