/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

// Package debugger implements browser debugging operations on top of the
// multiplexed protocol client: target enumeration, page content retrieval,
// element inspection, and console/network capture.
package debugger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/microsoft/cdpmux/internal/cdp"
)

// ErrElementNotFound indicates that a CSS selector matched no element in the
// inspected page.
var ErrElementNotFound = errors.New("element not found")

// Target describes one debuggable page (tab) exposed by the browser.
type Target struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Type  string `json:"type"`
}

// Service exposes the debugging operations. All operations share the client's
// single connection; sessions are opened and closed per operation, except for
// capture sessions which stay open to keep events flowing.
type Service struct {
	client *cdp.Client
	log    logr.Logger
}

func NewService(client *cdp.Client, log logr.Logger) *Service {
	return &Service{
		client: client,
		log:    log,
	}
}

type targetInfo struct {
	TargetID string `json:"targetId"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}

type getTargetsResult struct {
	TargetInfos []targetInfo `json:"targetInfos"`
}

// ListTargets returns the open page targets. Non-page targets (service
// workers, extensions, the browser target itself) are filtered out.
func (s *Service) ListTargets(ctx context.Context) ([]Target, error) {
	infos, err := s.pageTargets(ctx)
	if err != nil {
		return nil, err
	}

	targets := make([]Target, 0, len(infos))
	for _, info := range infos {
		targets = append(targets, Target{
			ID:    info.TargetID,
			Title: info.Title,
			URL:   info.URL,
			Type:  info.Type,
		})
	}
	return targets, nil
}

func (s *Service) pageTargets(ctx context.Context) ([]targetInfo, error) {
	var result getTargetsResult
	if err := s.client.Call(ctx, "Target.getTargets", nil, &result); err != nil {
		return nil, fmt.Errorf("failed to enumerate targets: %w", err)
	}

	pages := make([]targetInfo, 0, len(result.TargetInfos))
	for _, info := range result.TargetInfos {
		if info.Type == "page" {
			pages = append(pages, info)
		}
	}
	return pages, nil
}

type getDocumentParams struct {
	Depth int `json:"depth"`
}

type getDocumentResult struct {
	Root struct {
		NodeID int `json:"nodeId"`
	} `json:"root"`
}

type nodeIDParams struct {
	NodeID int `json:"nodeId"`
}

type getOuterHTMLResult struct {
	OuterHTML string `json:"outerHTML"`
}

// TargetContent returns the outer HTML of the document in the given target.
// It attaches a session for the duration of the retrieval.
func (s *Service) TargetContent(ctx context.Context, targetID string) (string, error) {
	var html string
	err := s.client.WithSession(ctx, targetID, func(sender cdp.ScopedSender) error {
		var doc getDocumentResult
		if err := sender.Call(ctx, "DOM.getDocument", getDocumentParams{Depth: 1}, &doc); err != nil {
			return fmt.Errorf("failed to get document for target %s: %w", targetID, err)
		}

		var outer getOuterHTMLResult
		if err := sender.Call(ctx, "DOM.getOuterHTML", nodeIDParams{NodeID: doc.Root.NodeID}, &outer); err != nil {
			return fmt.Errorf("failed to get page HTML for target %s: %w", targetID, err)
		}

		html = outer.OuterHTML
		return nil
	})
	return html, err
}

type querySelectorParams struct {
	NodeID   int    `json:"nodeId"`
	Selector string `json:"selector"`
}

type querySelectorResult struct {
	NodeID int `json:"nodeId"`
}

type describeNodeParams struct {
	NodeID int  `json:"nodeId"`
	Depth  int  `json:"depth"`
	Pierce bool `json:"pierce"`
}

type describeNodeResult struct {
	Node json.RawMessage `json:"node"`
}

type computedStyleResult struct {
	ComputedStyle json.RawMessage `json:"computedStyle"`
}

// ElementInfo is the inspection report for a single element: its DOM node
// description, computed styles, and markup. Node and ComputedStyles are the
// raw protocol payloads, passed through undecoded.
type ElementInfo struct {
	TargetID       string          `json:"targetId"`
	Selector       string          `json:"selector"`
	Node           json.RawMessage `json:"nodeDetails"`
	ComputedStyles json.RawMessage `json:"computedStyles"`
	OuterHTML      string          `json:"outerHTML"`
}

// InspectElement locates an element by CSS selector in the given target and
// returns its node description, computed styles, and outer HTML. Returns
// ErrElementNotFound (wrapped) when the selector matches nothing.
func (s *Service) InspectElement(ctx context.Context, targetID string, selector string) (*ElementInfo, error) {
	var info *ElementInfo
	err := s.client.WithSession(ctx, targetID, func(sender cdp.ScopedSender) error {
		var doc getDocumentResult
		if err := sender.Call(ctx, "DOM.getDocument", getDocumentParams{Depth: 1}, &doc); err != nil {
			return fmt.Errorf("failed to get document for target %s: %w", targetID, err)
		}

		var query querySelectorResult
		if err := sender.Call(ctx, "DOM.querySelector", querySelectorParams{NodeID: doc.Root.NodeID, Selector: selector}, &query); err != nil {
			return fmt.Errorf("selector query failed for target %s: %w", targetID, err)
		}
		// The protocol reports "no match" as node identifier zero, not an error.
		if query.NodeID == 0 {
			return fmt.Errorf("no element matches selector %q in target %s: %w", selector, targetID, ErrElementNotFound)
		}

		var node describeNodeResult
		if err := sender.Call(ctx, "DOM.describeNode", describeNodeParams{NodeID: query.NodeID, Depth: 1, Pierce: true}, &node); err != nil {
			return fmt.Errorf("failed to describe node for selector %q: %w", selector, err)
		}

		var styles computedStyleResult
		if err := sender.Call(ctx, "CSS.getComputedStyleForNode", nodeIDParams{NodeID: query.NodeID}, &styles); err != nil {
			return fmt.Errorf("failed to get computed styles for selector %q: %w", selector, err)
		}

		var outer getOuterHTMLResult
		if err := sender.Call(ctx, "DOM.getOuterHTML", nodeIDParams{NodeID: query.NodeID}, &outer); err != nil {
			return fmt.Errorf("failed to get element HTML for selector %q: %w", selector, err)
		}

		info = &ElementInfo{
			TargetID:       targetID,
			Selector:       selector,
			Node:           node.Node,
			ComputedStyles: styles.ComputedStyle,
			OuterHTML:      outer.OuterHTML,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}
