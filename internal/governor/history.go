package governor

import (
	"time"

	"github.com/phantomos/phantom/internal/capability"
	"github.com/phantomos/phantom/internal/fault"
)

// HistoryEntry is one recorded judgment. Entries are immutable except for
// the CanRollback flag, which a rollback clears on the original entry; the
// rollback itself appends a new compensating entry.
type HistoryEntry struct {
	CodeHash    string
	Approved    bool
	CanRollback bool
	Name        string
	Threat      ThreatLevel
	Caps        capability.Set
	DecisionBy  string
	Summary     string
	Timestamp   time.Time
}

// history is a fixed-size circular buffer of judgments. Logical order is
// append order; Get(0) is the most recent entry. Once full, appending
// overwrites the oldest entry - its audit record remains in the sink.
type history struct {
	entries []HistoryEntry
	size    int
	next    int // ring position of the next append
	count   int
}

func newHistory(size int) *history {
	return &history{entries: make([]HistoryEntry, size), size: size}
}

func (h *history) append(e HistoryEntry) {
	h.entries[h.next] = e
	h.next = (h.next + 1) % h.size
	if h.count < h.size {
		h.count++
	}
}

// get returns a pointer to entry at logical index (0 = most recent).
func (h *history) get(index int) (*HistoryEntry, error) {
	if index < 0 || index >= h.count {
		return nil, fault.New(fault.KindNotFound, "history_index",
			"history index %d out of range (have %d entries)", index, h.count)
	}
	pos := (h.next - 1 - index + h.size*2) % h.size
	return &h.entries[pos], nil
}
