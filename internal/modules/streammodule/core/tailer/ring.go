package tailer

import "sync"

// DefaultCapacity is the number of diagnostic lines kept per session
const DefaultCapacity = 50

// Ring is a bounded FIFO of log lines. When full, appending evicts the
// oldest line. Safe for concurrent use.
type Ring struct {
	mu    sync.Mutex
	lines []string
	start int
	size  int
}

// NewRing creates a ring holding at most capacity lines
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{lines: make([]string, capacity)}
}

// Append adds line, evicting the oldest if the ring is full
func (r *Ring) Append(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := (r.start + r.size) % len(r.lines)
	r.lines[idx] = line
	if r.size < len(r.lines) {
		r.size++
		return
	}
	r.start = (r.start + 1) % len(r.lines)
}

// Lines returns a copy of the ring contents, oldest first
func (r *Ring) Lines() []string {
	if r == nil {
		return []string{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.lines[(r.start+i)%len(r.lines)]
	}
	return out
}

// Len returns the number of lines held
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap returns the ring capacity
func (r *Ring) Cap() int {
	return len(r.lines)
}
