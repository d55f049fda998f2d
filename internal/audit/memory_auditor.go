package audit

import (
	"sync"

	"github.com/darmiel/sessionbridge/internal/core"
)

// DefaultCapacity bounds the in-memory audit log if no capacity is configured.
const DefaultCapacity = 10_000

var _ core.Auditor = (*InMemoryAuditor)(nil)

// InMemoryAuditor keeps the newest audit entries in a ring buffer.
// It backs the admin audit route and tests.
type InMemoryAuditor struct {
	mu      sync.Mutex
	entries []core.AuditEntry
	next    int // write position once the buffer is full
}

func NewInMemoryAuditor() *InMemoryAuditor {
	return NewBoundedInMemoryAuditor(DefaultCapacity)
}

// NewBoundedInMemoryAuditor keeps at most capacity entries, dropping the oldest.
func NewBoundedInMemoryAuditor(capacity int) *InMemoryAuditor {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &InMemoryAuditor{
		entries: make([]core.AuditEntry, 0, capacity),
	}
}

func (i *InMemoryAuditor) Log(entry core.AuditEntry) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	entry = stamp(entry)
	if len(i.entries) < cap(i.entries) {
		i.entries = append(i.entries, entry)
		return nil
	}
	i.entries[i.next] = entry
	i.next = (i.next + 1) % len(i.entries)
	return nil
}

// Recent returns up to limit entries, newest first. A limit <= 0 returns all entries.
func (i *InMemoryAuditor) Recent(limit int) []core.AuditEntry {
	i.mu.Lock()
	defer i.mu.Unlock()

	n := len(i.entries)
	if limit > n || limit <= 0 {
		limit = n
	}
	out := make([]core.AuditEntry, 0, limit)
	for k := 1; k <= limit; k++ {
		// newest entry sits right before the write position
		out = append(out, i.entries[(i.next-k+n)%n])
	}
	return out
}

// Find returns all entries of the given action, oldest first.
func (i *InMemoryAuditor) Find(action string) []core.AuditEntry {
	i.mu.Lock()
	defer i.mu.Unlock()

	var matches []core.AuditEntry
	n := len(i.entries)
	for k := range n {
		entry := i.entries[(i.next+k)%n]
		if entry.Action == action {
			matches = append(matches, entry)
		}
	}
	return matches
}

func (i *InMemoryAuditor) Close() error {
	return nil
}
