package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCategoryForMethod(t *testing.T) {
	t.Parallel()

	for method, expected := range map[string]EventCategory{
		"Console.messageAdded":       CategoryConsole,
		"Network.requestWillBeSent":  CategoryNetwork,
		"Network.responseReceived":   CategoryNetwork,
		"Page.loadEventFired":        CategoryPage,
		"Target.targetCreated":       CategoryTarget,
		"Animation.animationStarted": CategoryUnknown,
		"noseparator":                CategoryUnknown,
	} {
		require.Equal(t, expected, categoryForMethod(method), "method %s", method)
	}
}

func TestEventStoreKeepsArrivalOrder(t *testing.T) {
	t.Parallel()

	store := newEventStore(defaultEventRetentionCap)
	for i := 0; i < 10; i++ {
		store.record("Console.messageAdded", json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)))
	}

	events := store.Events(CategoryConsole)
	require.Len(t, events, 10)
	for i, event := range events {
		require.Equal(t, json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)), event.Params)
		if i > 0 {
			require.Greater(t, event.Seq, events[i-1].Seq)
		}
	}
}

func TestEventStoreEvictsOldestBeyondRetentionCap(t *testing.T) {
	t.Parallel()

	store := newEventStore(defaultEventRetentionCap)
	for i := 1; i <= defaultEventRetentionCap+1; i++ {
		store.record("Network.requestWillBeSent", json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)))
	}

	events := store.Events(CategoryNetwork)
	require.Len(t, events, defaultEventRetentionCap)
	// Record 1 (oldest) was evicted by record 1001.
	require.Equal(t, json.RawMessage(`{"n":2}`), events[0].Params)
	require.Equal(t, json.RawMessage(fmt.Sprintf(`{"n":%d}`, defaultEventRetentionCap+1)), events[len(events)-1].Params)
}

func TestEventStoreBucketsAreIndependent(t *testing.T) {
	t.Parallel()

	store := newEventStore(defaultEventRetentionCap)
	store.record("Console.messageAdded", json.RawMessage(`{}`))
	store.record("Network.requestWillBeSent", json.RawMessage(`{}`))
	store.record("Animation.animationStarted", json.RawMessage(`{}`))

	require.Len(t, store.Events(CategoryConsole), 1)
	require.Len(t, store.Events(CategoryNetwork), 1)
	require.Len(t, store.Events(CategoryUnknown), 1)
	require.Empty(t, store.Events(CategoryPage))
}

func TestEventsFuncFiltersByPredicate(t *testing.T) {
	t.Parallel()

	store := newEventStore(defaultEventRetentionCap)
	store.record("Console.messageAdded", json.RawMessage(`{}`))
	store.record("Console.messagesCleared", json.RawMessage(`{}`))
	store.record("Console.messageAdded", json.RawMessage(`{}`))

	added := store.EventsFunc(CategoryConsole, func(e Event) bool {
		return e.Method == "Console.messageAdded"
	})
	require.Len(t, added, 2)
}

func TestInboundEventsAreCaptured(t *testing.T) {
	t.Parallel()

	fe := newFakeEndpoint(t)
	client := connectedClient(t, fe)

	fe.SendEvent("Console.messageAdded", map[string]any{"message": map[string]any{"text": "hello"}})
	fe.SendEvent("Console.messageAdded", map[string]any{"message": map[string]any{"text": "world"}})

	require.Eventually(t, func() bool {
		return len(client.Events(CategoryConsole)) == 2
	}, 5*time.Second, 10*time.Millisecond)

	events := client.Events(CategoryConsole)
	require.Equal(t, "Console.messageAdded", events[0].Method)
	require.Less(t, events[0].Seq, events[1].Seq)
}

func TestMalformedFramesAreDroppedAndTheLoopContinues(t *testing.T) {
	t.Parallel()

	fe := newFakeEndpoint(t)
	client := connectedClient(t, fe)

	fe.Send(`this is not json`)
	fe.Send(`{"neither":"id","nor":"method"}`)
	fe.SendEvent("Log.entryAdded", map[string]any{"entry": map[string]any{"text": "still alive"}})

	require.Eventually(t, func() bool {
		return len(client.Events(CategoryLog)) == 1
	}, 5*time.Second, 10*time.Millisecond)

	// The connection is still fully functional for commands.
	go func() {
		cmd := fe.NextCommand()
		fe.RespondResult(cmd.ID, map[string]any{})
	}()
	require.NoError(t, client.Call(context.Background(), "Target.getTargets", nil, nil))
}
