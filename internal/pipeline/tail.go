package pipeline

import "sync"

// OutputTail keeps the most recent external-tool output lines. Failed stages
// attach the tail to their result so the report and the job ledger carry the
// tool's last words.
type OutputTail struct {
	mu    sync.Mutex
	max   int
	lines []string
}

// NewOutputTail creates a tail holding at most max lines.
func NewOutputTail(max int) *OutputTail {
	if max <= 0 {
		max = 20
	}
	return &OutputTail{max: max}
}

// Add appends a line, evicting the oldest when full. Safe for concurrent use;
// the tool runner calls it from its output-streaming goroutine.
func (t *OutputTail) Add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		copy(t.lines, t.lines[len(t.lines)-t.max:])
		t.lines = t.lines[:t.max]
	}
}

// Reset clears the tail at the start of a stage attempt.
func (t *OutputTail) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = t.lines[:0]
}

// Lines returns a copy of the collected tail.
func (t *OutputTail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}
