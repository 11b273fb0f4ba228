// Package errorsink provides reference api.ErrorSink implementations: an
// in-memory one for tests and short-lived callers, and a durable one
// backed by bbolt for callers that need errors to survive a process
// restart.
package errorsink

import (
	"sync"

	"github.com/oasisprotocol/tablebatch/api"
	"github.com/oasisprotocol/tablebatch/errs"
)

// Entry pairs a recorded op with the status the batcher observed for it.
type Entry struct {
	Op     api.Operation
	Status errs.Status
}

// Memory is an in-memory api.ErrorSink. Safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemory constructs an empty Memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// AddError implements api.ErrorSink.
func (m *Memory) AddError(op api.Operation, status errs.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{Op: op, Status: status})
}

// Entries returns a snapshot of every error recorded so far.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Len reports how many errors have been recorded.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
