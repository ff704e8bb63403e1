package governor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phantomos/phantom/internal/capability"
	"github.com/phantomos/phantom/internal/fault"
	"github.com/phantomos/phantom/internal/sink"
)

// EnableCache turns the decision cache on or off. Disabling does not drop
// existing entries; they resume serving when re-enabled.
func (g *Governor) EnableCache(enable bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache.enabled = enable
}

// ClearCache drops every cache entry.
func (g *Governor) ClearCache() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache.clear()
}

// InvalidateCache drops the entry for one code hash.
func (g *Governor) InvalidateCache(codeHash string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cache.invalidate(codeHash)
}

// CacheStats returns cache counters.
func (g *Governor) CacheStats() CacheStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := g.cache.stats
	st.Entries = len(g.cache.entries)
	return st
}

// RestoreHistory seeds the ring from persisted decision records, oldest
// first. Only approve and decline records become entries; a later rollback
// record for the same artifact clears the original's rollback flag so a
// compensated decision cannot be compensated twice.
func (g *Governor) RestoreHistory(records []sink.DecisionRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rolledBack := make(map[string]int)
	for _, rec := range records {
		if rec.Kind == "rollback" {
			rolledBack[rec.ArtifactHash]++
		}
	}
	for _, rec := range records {
		switch rec.Kind {
		case "approve", "decline":
		default:
			continue
		}
		approved := rec.Kind == "approve"
		canRollback := true
		if rolledBack[rec.ArtifactHash] > 0 {
			rolledBack[rec.ArtifactHash]--
			canRollback = false
		}
		g.history.append(HistoryEntry{
			CodeHash:    rec.ArtifactHash,
			Approved:    approved,
			CanRollback: canRollback,
			Name:        rec.Name,
			Threat:      ParseThreat(rec.Threat),
			Caps:        capability.Set(rec.Caps),
			DecisionBy:  rec.DecisionBy,
			Summary:     rec.Summary,
			Timestamp:   time.Unix(rec.Timestamp, 0),
		})
	}
}

// HistoryCount returns the number of live history entries.
func (g *Governor) HistoryCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.history.count
}

// History returns a copy of the entry at logical index (0 = most recent).
func (g *Governor) History(index int) (HistoryEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, err := g.history.get(index)
	if err != nil {
		return HistoryEntry{}, err
	}
	return *e, nil
}

// Rollback compensates the decision at history index. The original entry
// is preserved with CanRollback cleared; a new compensating entry with the
// flipped decision is appended, the matching cache entry is invalidated,
// and scopes issued under the decision are revoked.
func (g *Governor) Rollback(ctx context.Context, index int) error {
	g.mu.Lock()
	entry, err := g.history.get(index)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	if !entry.CanRollback {
		g.mu.Unlock()
		return fault.New(fault.KindDenied, "no_rollback",
			"history entry %d is not rollbackable", index)
	}

	entry.CanRollback = false
	original := *entry

	compensating := HistoryEntry{
		CodeHash:    original.CodeHash,
		Approved:    !original.Approved,
		CanRollback: false,
		Name:        original.Name,
		Threat:      original.Threat,
		DecisionBy:  "rollback",
		Summary:     fmt.Sprintf("Rollback of: %s", original.Summary),
		Timestamp:   g.now(),
	}
	g.history.append(compensating)
	g.cache.invalidate(original.CodeHash)
	revoked := g.scopes.revokeOrigin(original.CodeHash)
	g.mu.Unlock()

	slog.Info("decision rolled back",
		"hash", original.CodeHash,
		"name", original.Name,
		"scopes_revoked", revoked)

	return g.appendAudit(ctx, sink.DecisionRecord{
		Source:       "governor",
		ArtifactHash: original.CodeHash,
		Name:         original.Name,
		Kind:         "rollback",
		Threat:       original.Threat.String(),
		DecisionBy:   "rollback",
		Summary:      compensating.Summary,
		Reasoning:    fmt.Sprintf("compensating entry for %q decision", original.DecisionBy),
	})
}

// AddScope installs a capability scope and returns its slot index.
func (g *Governor) AddScope(s Scope) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scopes.add(s)
}

// RemoveScope deactivates the scope at index.
func (g *Governor) RemoveScope(index int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scopes.remove(index)
}

// CheckScope reports whether an operation needing cap on path with the
// given size is permitted under the active scopes.
func (g *Governor) CheckScope(cap capability.Cap, path string, size int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scopes.check(cap, path, size)
}

// CleanupExpiredScopes reclaims expired slots and returns the count.
func (g *Governor) CleanupExpiredScopes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scopes.cleanupExpired()
}
