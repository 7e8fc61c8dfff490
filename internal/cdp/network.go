/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package cdp

import "encoding/json"

const (
	methodRequestWillBeSent = "Network.requestWillBeSent"
	methodResponseReceived  = "Network.responseReceived"

	// RequestStatusPending marks a request with no response observed yet.
	RequestStatusPending = "pending"
	// RequestStatusReceived marks a request whose response has been observed.
	RequestStatusReceived = "received"
)

// NetworkRequest is one logical network request reconstructed from captured
// events: a "request sent" event, optionally merged with a later "response
// received" event sharing the same request identifier.
type NetworkRequest struct {
	RequestID    string            `json:"requestId"`
	URL          string            `json:"url"`
	Method       string            `json:"method"`
	Headers      map[string]string `json:"headers,omitempty"`
	Timestamp    float64           `json:"timestamp"`
	ResourceType string            `json:"type,omitempty"`

	Status          string            `json:"status"`
	StatusCode      int               `json:"statusCode,omitempty"`
	StatusText      string            `json:"statusText,omitempty"`
	MimeType        string            `json:"mimeType,omitempty"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`
}

type requestWillBeSentParams struct {
	RequestID string  `json:"requestId"`
	Timestamp float64 `json:"timestamp"`
	Type      string  `json:"type"`
	Request   struct {
		URL     string            `json:"url"`
		Method  string            `json:"method"`
		Headers map[string]string `json:"headers"`
	} `json:"request"`
}

type responseReceivedParams struct {
	RequestID string `json:"requestId"`
	Response  struct {
		Status     int               `json:"status"`
		StatusText string            `json:"statusText"`
		MimeType   string            `json:"mimeType"`
		Headers    map[string]string `json:"headers"`
	} `json:"response"`
}

// MergeNetworkEvents folds captured network events into one record per request
// identifier, ordered by when the request was first seen. The fold is pure and
// replayable: a response with no matching request is left out of the view, a
// request with no response (yet) stays in status "pending", and events that
// fail to decode are skipped.
func MergeNetworkEvents(events []Event) []NetworkRequest {
	requests := make([]NetworkRequest, 0, len(events))
	byRequestID := make(map[string]int)

	for _, event := range events {
		switch event.Method {
		case methodRequestWillBeSent:
			var params requestWillBeSentParams
			if err := json.Unmarshal(event.Params, &params); err != nil || params.RequestID == "" {
				continue
			}
			byRequestID[params.RequestID] = len(requests)
			requests = append(requests, NetworkRequest{
				RequestID:    params.RequestID,
				URL:          params.Request.URL,
				Method:       params.Request.Method,
				Headers:      params.Request.Headers,
				Timestamp:    params.Timestamp,
				ResourceType: params.Type,
				Status:       RequestStatusPending,
			})

		case methodResponseReceived:
			var params responseReceivedParams
			if err := json.Unmarshal(event.Params, &params); err != nil || params.RequestID == "" {
				continue
			}
			idx, known := byRequestID[params.RequestID]
			if !known {
				// Response for a request we never saw; nothing to merge it into.
				continue
			}
			requests[idx].Status = RequestStatusReceived
			requests[idx].StatusCode = params.Response.Status
			requests[idx].StatusText = params.Response.StatusText
			requests[idx].MimeType = params.Response.MimeType
			requests[idx].ResponseHeaders = params.Response.Headers
		}
	}

	return requests
}
