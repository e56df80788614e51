// Copyright 2025 UMH Systems GmbH

// Package history provides the fixed-capacity ring buffer backing undo.
// Memory stays O(capacity) no matter how many snapshots are appended; once
// full, the logically oldest snapshot is evicted.
package history

// Buffer is a fixed-capacity ring of snapshots with stack-discipline
// removal. It is not goroutine-safe; the owning store serializes access.
type Buffer[T any] struct {
	slots []T
	head  int
	size  int
}

// New returns an empty buffer. Capacities below one are raised to one so a
// buffer can always hold at least the most recent snapshot.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}

	return &Buffer[T]{
		slots: make([]T, capacity),
	}
}

// Append stores v as the newest entry in O(1). At capacity it overwrites
// the logically oldest entry (FIFO eviction).
func (b *Buffer[T]) Append(v T) {
	if b.size < len(b.slots) {
		b.slots[(b.head+b.size)%len(b.slots)] = v
		b.size++

		return
	}

	b.slots[b.head] = v
	b.head = (b.head + 1) % len(b.slots)
}

// RemoveLast removes and returns the most recently appended surviving
// entry in O(1). The second return is false when the buffer is empty.
func (b *Buffer[T]) RemoveLast() (T, bool) {
	var zero T

	if b.size == 0 {
		return zero, false
	}

	idx := (b.head + b.size - 1) % len(b.slots)
	v := b.slots[idx]
	b.slots[idx] = zero
	b.size--

	return v, true
}

// RemoveAll resets the buffer to empty without reallocating. Slots are
// zeroed so evicted snapshots become collectable.
func (b *Buffer[T]) RemoveAll() {
	var zero T
	for i := range b.slots {
		b.slots[i] = zero
	}

	b.head = 0
	b.size = 0
}

// Len returns how many entries the buffer currently holds.
func (b *Buffer[T]) Len() int {
	return b.size
}

// Capacity returns the fixed capacity chosen at construction.
func (b *Buffer[T]) Capacity() int {
	return len(b.slots)
}

// Items returns the surviving entries oldest first, as a fresh slice.
func (b *Buffer[T]) Items() []T {
	items := make([]T, 0, b.size)
	for i := 0; i < b.size; i++ {
		items = append(items, b.slots[(b.head+i)%len(b.slots)])
	}

	return items
}
