package audit

import (
	"context"
	"sync"
)

// MemoryJournal keeps events in process memory. Tests use it in place of the
// Postgres repository; nothing is persisted across restarts.
type MemoryJournal struct {
	mu      sync.RWMutex
	entries []Event
}

func NewMemoryJournal() *MemoryJournal { return &MemoryJournal{} }

func (j *MemoryJournal) Append(ctx context.Context, e Event) error {
	j.mu.Lock()
	j.entries = append(j.entries, e)
	j.mu.Unlock()
	return nil
}

// Entries returns a copy of the journal in append order.
func (j *MemoryJournal) Entries() []Event {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Event, len(j.entries))
	copy(out, j.entries)
	return out
}

// ForLead returns the entries recorded against one lead, in append order.
func (j *MemoryJournal) ForLead(leadID string) []Event {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var out []Event
	for _, e := range j.entries {
		if e.LeadID == leadID {
			out = append(out, e)
		}
	}
	return out
}
