/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package concurrency

// BoundedBuffer is a fixed-capacity ring buffer that retains the most recently
// pushed items. When the buffer is full, pushing a new item evicts the oldest one.
// It is not goroutine-safe.
type BoundedBuffer[T any] struct {
	buf  []T
	len  int // how many items in the buffer
	head int // read pointer (oldest item)
	tail int // write pointer
}

func NewBoundedBuffer[T any](capacity int) *BoundedBuffer[T] {
	if capacity <= 0 {
		panic("bounded buffer capacity must be positive")
	}
	return &BoundedBuffer[T]{
		buf: make([]T, capacity),
	}
}

// Appends an item to the buffer, evicting the oldest item if the buffer is at capacity.
func (bb *BoundedBuffer[T]) Push(v T) {
	if bb.len == len(bb.buf) {
		// Overwrite the oldest item.
		bb.buf[bb.tail] = v
		bb.tail = bb.next(bb.tail)
		bb.head = bb.next(bb.head)
		return
	}

	bb.buf[bb.tail] = v
	bb.tail = bb.next(bb.tail)
	bb.len++
}

// Removes and returns the oldest item from the buffer.
// The second value indicates whether the buffer was empty and a zero-value item was returned instead.
func (bb *BoundedBuffer[T]) Pop() (T, bool) {
	var zero T
	if bb.len == 0 {
		return zero, false
	}

	v := bb.buf[bb.head]
	bb.buf[bb.head] = zero
	bb.head = bb.next(bb.head)
	bb.len--
	return v, true
}

func (bb *BoundedBuffer[T]) Len() int {
	return bb.len
}

func (bb *BoundedBuffer[T]) Cap() int {
	return len(bb.buf)
}

func (bb *BoundedBuffer[T]) Empty() bool {
	return bb.len == 0
}

// Returns the buffered items, oldest first. The returned slice is a copy.
func (bb *BoundedBuffer[T]) Snapshot() []T {
	out := make([]T, 0, bb.len)
	for i, idx := 0, bb.head; i < bb.len; i, idx = i+1, bb.next(idx) {
		out = append(out, bb.buf[idx])
	}
	return out
}

func (bb *BoundedBuffer[T]) next(i int) int {
	return (i + 1) % len(bb.buf)
}
