package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScopedSenderTagsCommandsWithSessionIdentifier(t *testing.T) {
	t.Parallel()

	fe := newFakeEndpoint(t)
	client := connectedClient(t, fe)

	observed := fe.AutoRespond(func(cmd wireCommand) any {
		if cmd.Method == "Target.attachToTarget" {
			return map[string]any{"sessionId": "SESSION-1"}
		}
		return nil
	})

	session, err := client.Attach(context.Background(), "T1")
	require.NoError(t, err)
	attachCmd := <-observed
	require.Equal(t, "Target.attachToTarget", attachCmd.Method)
	require.Equal(t, "", attachCmd.SessionID, "attach itself is unscoped")

	var attachParams attachToTargetParams
	require.NoError(t, json.Unmarshal(attachCmd.Params, &attachParams))
	require.Equal(t, "T1", attachParams.TargetID)
	require.True(t, attachParams.Flatten)

	require.Equal(t, "SESSION-1", session.ID())
	require.Equal(t, "T1", session.TargetID())

	require.NoError(t, session.Sender().Call(context.Background(), "DOM.getDocument", nil, nil))
	scopedCmd := <-observed
	require.Equal(t, "SESSION-1", scopedCmd.SessionID)
}

func TestAttachRejectsEmptySessionIdentifier(t *testing.T) {
	t.Parallel()

	fe := newFakeEndpoint(t)
	client := connectedClient(t, fe)

	fe.AutoRespond(func(cmd wireCommand) any {
		return map[string]any{"sessionId": ""}
	})

	session, err := client.Attach(context.Background(), "T1")
	require.Error(t, err)
	require.Nil(t, session)
}

func TestCallAfterDetachFailsWithSessionClosed(t *testing.T) {
	t.Parallel()

	fe := newFakeEndpoint(t)
	client := connectedClient(t, fe)

	fe.AutoRespond(func(cmd wireCommand) any {
		if cmd.Method == "Target.attachToTarget" {
			return map[string]any{"sessionId": "S1"}
		}
		return nil
	})

	session, err := client.Attach(context.Background(), "T1")
	require.NoError(t, err)

	sender := session.Sender()
	require.NoError(t, client.Detach(context.Background(), session))
	require.True(t, session.Closed())

	require.ErrorIs(t, sender.Call(context.Background(), "DOM.getDocument", nil, nil), ErrSessionClosed)
}

func TestDetachIsIdempotent(t *testing.T) {
	t.Parallel()

	fe := newFakeEndpoint(t)
	client := connectedClient(t, fe)

	observed := fe.AutoRespond(func(cmd wireCommand) any {
		if cmd.Method == "Target.attachToTarget" {
			return map[string]any{"sessionId": "S1"}
		}
		return nil
	})

	session, err := client.Attach(context.Background(), "T1")
	require.NoError(t, err)
	<-observed // attach

	require.NoError(t, client.Detach(context.Background(), session))
	detachCmd := <-observed
	require.Equal(t, "Target.detachFromTarget", detachCmd.Method)

	// The second detach is a no-op and sends nothing.
	require.NoError(t, client.Detach(context.Background(), session))
	select {
	case cmd := <-observed:
		t.Fatalf("unexpected command after repeated detach: %s", cmd.Method)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWithSessionDetachesEvenWhenTheBodyFails(t *testing.T) {
	t.Parallel()

	fe := newFakeEndpoint(t)
	client := connectedClient(t, fe)

	observed := fe.AutoRespond(func(cmd wireCommand) any {
		if cmd.Method == "Target.attachToTarget" {
			return map[string]any{"sessionId": "S1"}
		}
		return nil
	})

	bodyErr := errors.New("inspection failed")
	err := client.WithSession(context.Background(), "T1", func(sender ScopedSender) error {
		require.Equal(t, "S1", sender.SessionID())
		return bodyErr
	})
	require.ErrorIs(t, err, bodyErr)

	attachCmd := <-observed
	require.Equal(t, "Target.attachToTarget", attachCmd.Method)

	select {
	case detachCmd := <-observed:
		require.Equal(t, "Target.detachFromTarget", detachCmd.Method)
		var detachParams detachFromTargetParams
		require.NoError(t, json.Unmarshal(detachCmd.Params, &detachParams))
		require.Equal(t, "S1", detachParams.SessionID)
	case <-time.After(5 * time.Second):
		t.Fatal("the session was never detached after the body failed")
	}
}

func TestWithSessionDetachFailureIsNotEscalated(t *testing.T) {
	t.Parallel()

	fe := newFakeEndpoint(t)
	client := connectedClient(t, fe)

	fe.AutoRespond(func(cmd wireCommand) any {
		switch cmd.Method {
		case "Target.attachToTarget":
			return map[string]any{"sessionId": "S1"}
		case "Target.detachFromTarget":
			return &RemoteError{Code: -32000, Message: "no session with given id"}
		default:
			return nil
		}
	})

	err := client.WithSession(context.Background(), "T1", func(sender ScopedSender) error {
		return sender.Call(context.Background(), "Console.enable", nil, nil)
	})
	require.NoError(t, err, "a failed best-effort detach must not fail the operation")
}

func TestCloseInvalidatesOpenSessions(t *testing.T) {
	t.Parallel()

	fe := newFakeEndpoint(t)
	client := connectedClient(t, fe)

	fe.AutoRespond(func(cmd wireCommand) any {
		if cmd.Method == "Target.attachToTarget" {
			return map[string]any{"sessionId": "S1"}
		}
		return nil
	})

	session, err := client.Attach(context.Background(), "T1")
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.True(t, session.Closed())
	require.ErrorIs(t, session.Sender().Call(context.Background(), "DOM.getDocument", nil, nil), ErrSessionClosed)
}
