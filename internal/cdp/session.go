/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package cdp

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// How long a best-effort detach may take once the session body has finished.
var detachTimeout = 5 * time.Second

// Session is a scoped channel to a single debug target (tab). Its identifier
// is issued by the remote endpoint on attach and is only valid while the
// session is open. Sessions do not outlive their client's connection.
type Session struct {
	id       string
	targetID string
	client   *Client
	closed   atomic.Bool
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) TargetID() string {
	return s.targetID
}

func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Sender returns a command sender scoped to this session.
func (s *Session) Sender() ScopedSender {
	return ScopedSender{session: s}
}

// ScopedSender sends commands tagged with a session identifier, routing them
// to the session's target over the shared connection. It is a plain value and
// safe to copy; identifiers still come from the client's shared counter.
type ScopedSender struct {
	session *Session
}

func (ss ScopedSender) SessionID() string {
	return ss.session.id
}

// Call sends a session-scoped command and waits for the matching response.
func (ss ScopedSender) Call(ctx context.Context, method string, params any, result any) error {
	if ss.session.Closed() {
		return fmt.Errorf("%s command on session %s: %w", method, ss.session.id, ErrSessionClosed)
	}
	return ss.session.client.call(ctx, ss.session.id, method, params, result)
}

type attachToTargetParams struct {
	TargetID string `json:"targetId"`
	Flatten  bool   `json:"flatten"`
}

type attachToTargetResult struct {
	SessionID string `json:"sessionId"`
}

type detachFromTargetParams struct {
	SessionID string `json:"sessionId"`
}

// Attach opens a session against the given target. The caller is responsible
// for detaching; prefer WithSession unless the session must outlive the call.
func (c *Client) Attach(ctx context.Context, targetID string) (*Session, error) {
	var attached attachToTargetResult
	if err := c.Call(ctx, "Target.attachToTarget", attachToTargetParams{TargetID: targetID, Flatten: true}, &attached); err != nil {
		return nil, fmt.Errorf("failed to attach to target %s: %w", targetID, err)
	}
	if attached.SessionID == "" {
		return nil, fmt.Errorf("attach to target %s: endpoint returned an empty session identifier", targetID)
	}

	session := &Session{
		id:       attached.SessionID,
		targetID: targetID,
		client:   c,
	}
	c.sessions.Store(session.id, session)
	c.log.V(1).Info("attached to target", "targetId", targetID, "sessionId", session.id)

	return session, nil
}

// Detach closes the session. Detaching is best-effort: the target may have
// navigated away or closed on its own, so a failure is logged and returned but
// should rarely be escalated.
func (c *Client) Detach(ctx context.Context, session *Session) error {
	if !session.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.sessions.Delete(session.id)

	if err := c.Call(ctx, "Target.detachFromTarget", detachFromTargetParams{SessionID: session.id}, nil); err != nil {
		c.log.V(1).Info("failed to detach from target; it may have closed on its own",
			"targetId", session.targetID, "sessionId", session.id, "Error", err)
		return err
	}

	c.log.V(1).Info("detached from target", "targetId", session.targetID, "sessionId", session.id)
	return nil
}

// WithSession attaches to the target, invokes body with a session-scoped
// sender, and detaches unconditionally — a failing body never leaks an
// attached session.
func (c *Client) WithSession(ctx context.Context, targetID string, body func(ScopedSender) error) error {
	session, attachErr := c.Attach(ctx, targetID)
	if attachErr != nil {
		return attachErr
	}

	defer func() {
		// Detach even when ctx is already cancelled or expired.
		detachCtx, cancelDetach := context.WithTimeout(context.WithoutCancel(ctx), detachTimeout)
		defer cancelDetach()
		_ = c.Detach(detachCtx, session)
	}()

	return body(session.Sender())
}

// invalidateSessions marks every open session closed without issuing detach
// commands; it runs during teardown when the transport is already gone.
func (c *Client) invalidateSessions() {
	c.sessions.Range(func(id string, session *Session) bool {
		session.closed.Store(true)
		c.sessions.Delete(id)
		return true
	})
}
