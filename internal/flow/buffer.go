package flow

import (
	"sync"
)

// CircularBuffer is a thread-safe fixed-capacity buffer of text units. Once
// full, each push overwrites the logically oldest unit. It retains the most
// recent window of units emitted during a session so they can be inspected
// after an interruption.
type CircularBuffer struct {
	mu       sync.RWMutex
	items    []string
	capacity int
	write    int
	count    int
}

// NewCircularBuffer creates a buffer holding at most capacity units
func NewCircularBuffer(capacity int) (*CircularBuffer, error) {
	if capacity <= 0 {
		return nil, &InvalidConfigurationError{
			Field:  "bufferCapacity",
			Reason: "must be positive",
		}
	}
	return &CircularBuffer{
		items:    make([]string, capacity),
		capacity: capacity,
	}, nil
}

// Push appends a unit, overwriting the oldest one once the buffer is full
func (cb *CircularBuffer) Push(item string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.items[cb.write] = item
	cb.write = (cb.write + 1) % cb.capacity
	if cb.count < cb.capacity {
		cb.count++
	}
}

// Snapshot returns the buffered units ordered oldest to newest. The returned
// slice is freshly allocated, so callers cannot corrupt the buffer through it.
func (cb *CircularBuffer) Snapshot() []string {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	out := make([]string, cb.count)
	start := (cb.write - cb.count + cb.capacity) % cb.capacity
	for i := 0; i < cb.count; i++ {
		out[i] = cb.items[(start+i)%cb.capacity]
	}
	return out
}

// Clear logically resets the buffer without zeroing storage
func (cb *CircularBuffer) Clear() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.write = 0
	cb.count = 0
}

// Size returns the number of units currently buffered
func (cb *CircularBuffer) Size() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.count
}

// IsFull returns true once the buffer holds capacity units
func (cb *CircularBuffer) IsFull() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.count == cb.capacity
}

// Capacity returns the fixed capacity the buffer was created with
func (cb *CircularBuffer) Capacity() int {
	return cb.capacity
}
