/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package cdp

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/microsoft/cdpmux/pkg/concurrency"
)

// EventCategory buckets events by the namespace segment of the method name
// (e.g. "Network" in "Network.requestWillBeSent"). The set is closed; methods
// outside it land in CategoryUnknown so total memory stays bounded.
type EventCategory string

const (
	CategoryConsole  EventCategory = "Console"
	CategoryNetwork  EventCategory = "Network"
	CategoryPage     EventCategory = "Page"
	CategoryRuntime  EventCategory = "Runtime"
	CategoryTarget   EventCategory = "Target"
	CategoryDOM      EventCategory = "DOM"
	CategoryLog      EventCategory = "Log"
	CategorySecurity EventCategory = "Security"
	CategoryUnknown  EventCategory = "Unknown"
)

var eventCategories = []EventCategory{
	CategoryConsole,
	CategoryNetwork,
	CategoryPage,
	CategoryRuntime,
	CategoryTarget,
	CategoryDOM,
	CategoryLog,
	CategorySecurity,
	CategoryUnknown,
}

// Each category retains at most this many events; the oldest are evicted first.
const defaultEventRetentionCap = 1000

func categoryForMethod(method string) EventCategory {
	namespace, _, _ := strings.Cut(method, ".")
	for _, category := range eventCategories {
		if namespace == string(category) {
			return category
		}
	}
	return CategoryUnknown
}

// Event is one unsolicited notification pushed by the remote endpoint.
// Params is retained as raw JSON; this package does not interpret it.
type Event struct {
	Category EventCategory
	Method   string
	Params   json.RawMessage

	// Seq is the arrival sequence number, global across categories.
	Seq uint64
}

// EventStore buckets events by category with bounded FIFO retention per
// bucket. Writes come from the single listener loop; reads may come from any
// goroutine, so all access is serialized by a mutex and queries return copies.
type EventStore struct {
	mu      sync.Mutex
	seq     uint64
	buffers map[EventCategory]*concurrency.BoundedBuffer[Event]
}

func newEventStore(retentionCap int) *EventStore {
	buffers := make(map[EventCategory]*concurrency.BoundedBuffer[Event], len(eventCategories))
	for _, category := range eventCategories {
		buffers[category] = concurrency.NewBoundedBuffer[Event](retentionCap)
	}
	return &EventStore{
		buffers: buffers,
	}
}

func (s *EventStore) record(method string, params json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	category := categoryForMethod(method)
	s.buffers[category].Push(Event{
		Category: category,
		Method:   method,
		Params:   params,
		Seq:      s.seq,
	})
}

// Events returns the buffered events for a category in arrival order, oldest first.
func (s *EventStore) Events(category EventCategory) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	buffer, known := s.buffers[category]
	if !known {
		return nil
	}
	return buffer.Snapshot()
}

// EventsFunc returns the buffered events for a category that satisfy the
// predicate, in arrival order.
func (s *EventStore) EventsFunc(category EventCategory, predicate func(Event) bool) []Event {
	all := s.Events(category)
	filtered := make([]Event, 0, len(all))
	for _, event := range all {
		if predicate(event) {
			filtered = append(filtered, event)
		}
	}
	return filtered
}
