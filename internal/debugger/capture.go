/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package debugger

import (
	"context"
	"encoding/json"

	"github.com/microsoft/cdpmux/internal/cdp"
)

// CaptureStatus reports the outcome of enabling capture on one page target.
// A failure on one target does not abort the others; it is recorded here.
type CaptureStatus struct {
	TargetID string `json:"targetId"`
	Title    string `json:"title,omitempty"`
	URL      string `json:"url,omitempty"`
	Status   string `json:"status,omitempty"`
	Error    string `json:"error,omitempty"`
}

const (
	statusConsoleEnabled = "console_enabled"
	statusNetworkEnabled = "network_monitoring_enabled"
)

// EnableConsoleCapture attaches to every open page target and enables console
// message events. The capture sessions stay open so events keep arriving; they
// are torn down with the client.
func (s *Service) EnableConsoleCapture(ctx context.Context) ([]CaptureStatus, error) {
	return s.enableCapture(ctx, "Console.enable", statusConsoleEnabled)
}

// EnableNetworkCapture attaches to every open page target and enables network
// request events. As with console capture, sessions stay open.
func (s *Service) EnableNetworkCapture(ctx context.Context) ([]CaptureStatus, error) {
	return s.enableCapture(ctx, "Network.enable", statusNetworkEnabled)
}

func (s *Service) enableCapture(ctx context.Context, enableMethod string, status string) ([]CaptureStatus, error) {
	pages, err := s.pageTargets(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]CaptureStatus, 0, len(pages))
	for _, page := range pages {
		entry := CaptureStatus{
			TargetID: page.TargetID,
			Title:    page.Title,
			URL:      page.URL,
		}

		session, attachErr := s.client.Attach(ctx, page.TargetID)
		if attachErr != nil {
			entry.Error = attachErr.Error()
			statuses = append(statuses, entry)
			continue
		}

		if enableErr := session.Sender().Call(ctx, enableMethod, nil, nil); enableErr != nil {
			entry.Error = enableErr.Error()
		} else {
			entry.Status = status
			s.log.V(1).Info("enabled event capture", "method", enableMethod, "targetId", page.TargetID)
		}
		statuses = append(statuses, entry)
	}

	return statuses, nil
}

// ConsoleMessage is one captured console entry, projected down from the
// protocol event payload.
type ConsoleMessage struct {
	Timestamp float64 `json:"timestamp"`
	Level     string  `json:"level"`
	Text      string  `json:"text"`
	URL       string  `json:"url"`
	Line      int     `json:"line"`
	Source    string  `json:"source"`
}

type consoleMessageAddedParams struct {
	Timestamp float64 `json:"timestamp"`
	Message   struct {
		Level  string `json:"level"`
		Text   string `json:"text"`
		URL    string `json:"url"`
		Line   int    `json:"line"`
		Source string `json:"source"`
	} `json:"message"`
}

// ConsoleMessages returns the captured console messages, oldest first.
// Undecodable events are skipped.
func (s *Service) ConsoleMessages() []ConsoleMessage {
	events := s.client.EventsFunc(cdp.CategoryConsole, func(e cdp.Event) bool {
		return e.Method == "Console.messageAdded"
	})

	messages := make([]ConsoleMessage, 0, len(events))
	for _, event := range events {
		var params consoleMessageAddedParams
		if err := json.Unmarshal(event.Params, &params); err != nil {
			s.log.V(1).Info("skipping undecodable console event", "Error", err)
			continue
		}
		if params.Message.Level == "" {
			params.Message.Level = "info"
		}
		messages = append(messages, ConsoleMessage{
			Timestamp: params.Timestamp,
			Level:     params.Message.Level,
			Text:      params.Message.Text,
			URL:       params.Message.URL,
			Line:      params.Message.Line,
			Source:    params.Message.Source,
		})
	}
	return messages
}

// NetworkRequests returns the captured network activity with requests and
// responses merged by request identifier.
func (s *Service) NetworkRequests() []cdp.NetworkRequest {
	return cdp.MergeNetworkEvents(s.client.Events(cdp.CategoryNetwork))
}
