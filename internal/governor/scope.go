package governor

import (
	"path"
	"time"

	"github.com/phantomos/phantom/internal/capability"
	"github.com/phantomos/phantom/internal/fault"
)

// Scope narrows one capability to a path pattern, a per-operation size
// limit, and an expiry.
type Scope struct {
	Cap      capability.Cap
	Glob     string
	MaxBytes int64         // 0 = unlimited
	Duration time.Duration // 0 = no expiry
	Origin   string        // code hash of the decision that issued it, if any

	addedAt    time.Time
	validUntil time.Time // zero = no expiry
	active     bool
}

// Expired reports whether the scope's validity window has passed.
func (s *Scope) expired(now time.Time) bool {
	return !s.validUntil.IsZero() && !now.Before(s.validUntil)
}

// scopeTable holds up to a fixed number of scope slots. Expired scopes are
// skipped on matching but stay in their slots until CleanupExpired.
type scopeTable struct {
	slots []Scope
	now   func() time.Time
}

func newScopeTable(size int, now func() time.Time) *scopeTable {
	return &scopeTable{slots: make([]Scope, size), now: now}
}

// add installs a scope in the first free slot and returns its index.
func (t *scopeTable) add(s Scope) (int, error) {
	if s.Glob == "" {
		return 0, fault.New(fault.KindInvalidInput, "scope_glob", "scope pattern must not be empty")
	}
	if _, err := path.Match(s.Glob, ""); err != nil {
		return 0, fault.New(fault.KindInvalidInput, "scope_glob", "malformed scope pattern %q", s.Glob)
	}
	for i := range t.slots {
		if t.slots[i].active {
			continue
		}
		s.addedAt = t.now()
		if s.Duration > 0 {
			s.validUntil = s.addedAt.Add(s.Duration)
		}
		s.active = true
		t.slots[i] = s
		return i, nil
	}
	return 0, fault.New(fault.KindExhausted, "scopes_full", "all %d scope slots in use", len(t.slots))
}

// remove deactivates the scope at index.
func (t *scopeTable) remove(index int) error {
	if index < 0 || index >= len(t.slots) || !t.slots[index].active {
		return fault.New(fault.KindNotFound, "scope_index", "no active scope at index %d", index)
	}
	t.slots[index].active = false
	return nil
}

// check reports whether an operation needing cap on p with the given size
// is permitted: true when no active scope exists for cap, or when at least
// one live scope matches. Scopes for the same capability OR-combine.
func (t *scopeTable) check(cap capability.Cap, p string, size int64) bool {
	now := t.now()
	constrained := false
	for i := range t.slots {
		s := &t.slots[i]
		if !s.active || s.Cap != cap {
			continue
		}
		constrained = true
		if s.expired(now) {
			continue
		}
		matched, err := path.Match(s.Glob, p)
		if err != nil || !matched {
			continue
		}
		if s.MaxBytes > 0 && size > s.MaxBytes {
			continue
		}
		return true
	}
	return !constrained
}

// cleanupExpired deactivates expired scopes and returns how many it
// reclaimed.
func (t *scopeTable) cleanupExpired() int {
	now := t.now()
	n := 0
	for i := range t.slots {
		if t.slots[i].active && t.slots[i].expired(now) {
			t.slots[i].active = false
			n++
		}
	}
	return n
}

// revokeOrigin deactivates every scope issued under the given code hash.
func (t *scopeTable) revokeOrigin(codeHash string) int {
	n := 0
	for i := range t.slots {
		if t.slots[i].active && t.slots[i].Origin == codeHash {
			t.slots[i].active = false
			n++
		}
	}
	return n
}
