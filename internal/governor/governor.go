// Package governor implements the capability-gated admission controller.
//
// Every code artifact passes through Evaluate before it may run. The
// Governor judges descriptions and text of code; it never executes
// anything. Each judgment produces an immutable decision record in the
// audit sink, a history entry, and (on approval) a verifiable signature
// over the artifact's hash.
package governor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phantomos/phantom/internal/capability"
	"github.com/phantomos/phantom/internal/cryptorand"
	"github.com/phantomos/phantom/internal/fault"
	"github.com/phantomos/phantom/internal/sink"
)

// AuditSink is the slice of the audit store the Governor writes to.
type AuditSink interface {
	Append(ctx context.Context, rec sink.DecisionRecord) (string, error)
}

// Config sizes the Governor's fixed tables and sets its admission posture.
type Config struct {
	CacheSize   int // default 128
	HistorySize int // default 256
	ScopeSlots  int // default 64
	TrustSlots  int // default 32

	Strict      bool
	Interactive bool

	// ApprovalTTL bounds how long an approval (and its cache entry) stays
	// valid. Zero means no expiry.
	ApprovalTTL time.Duration

	// PromptTimeout bounds the user prompt; expiry declines. Default 30s.
	PromptTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.CacheSize == 0 {
		c.CacheSize = 128
	}
	if c.HistorySize == 0 {
		c.HistorySize = 256
	}
	if c.ScopeSlots == 0 {
		c.ScopeSlots = 64
	}
	if c.TrustSlots == 0 {
		c.TrustSlots = 32
	}
	if c.PromptTimeout == 0 {
		c.PromptTimeout = 30 * time.Second
	}
	return c
}

// Request is one artifact submitted for judgment.
type Request struct {
	CodeHash     string // computed from Code if empty
	Code         []byte
	CreatorID    string
	Name         string
	Description  string
	DeclaredCaps capability.Set
}

// Response is the outcome of one evaluation.
type Response struct {
	CodeHash      string
	Approved      bool
	GrantedCaps   capability.Set
	Signature     string
	ValidUntil    time.Time
	Threat        ThreatLevel
	DecisionBy    string // "auto" | "user" | "policy"
	Summary       string
	Reasoning     string
	Alternatives  string
	DeclineReason string
	Behavior      BehaviorResult
	Cached        bool
	ApprovedAt    time.Time
}

// Stats counts Governor activity.
type Stats struct {
	TotalEvaluations int
	AutoApproved     int
	UserApproved     int
	AutoDeclined     int
	UserDeclined     int
	AuditFailures    int
	ThreatCounts     [5]int
}

// Governor is the admission controller. It owns its cache, history, scope
// and trust tables; the audit sink is injected and shared. Safe for
// concurrent use.
type Governor struct {
	mu      sync.Mutex
	cfg     Config
	cache   *decisionCache
	history *history
	scopes  *scopeTable
	trusted []string
	nonce   [32]byte
	stats   Stats

	audit    AuditSink
	prompter Prompter
	rand     cryptorand.Source
	now      func() time.Time
}

// New creates a Governor. The approver nonce is drawn once from the random
// source; a source failure fails construction outright.
func New(audit AuditSink, prompter Prompter, src cryptorand.Source, cfg Config) (*Governor, error) {
	cfg = cfg.withDefaults()
	g := &Governor{
		cfg:      cfg,
		audit:    audit,
		prompter: prompter,
		rand:     src,
		now:      time.Now,
	}
	if err := src.Fill(g.nonce[:]); err != nil {
		return nil, err
	}
	g.cache = newDecisionCache(cfg.CacheSize, func() time.Time { return g.now() })
	g.history = newHistory(cfg.HistorySize)
	g.scopes = newScopeTable(cfg.ScopeSlots, func() time.Time { return g.now() })
	slog.Info("governor initialized", "strict", cfg.Strict, "interactive", cfg.Interactive)
	return g, nil
}

// SetNow overrides the wall clock, for tests.
func (g *Governor) SetNow(now func() time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.now = now
}

// SetStrict toggles strict mode.
func (g *Governor) SetStrict(strict bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg.Strict = strict
}

// SetInteractive toggles interactive mode.
func (g *Governor) SetInteractive(interactive bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg.Interactive = interactive
}

// sign computes the approval signature H(code_hash ∥ approver_nonce),
// rendered as 64 lowercase hex digits.
func (g *Governor) sign(codeHash string) string {
	h := sha256.New()
	h.Write([]byte(codeHash))
	h.Write(g.nonce[:])
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether sig was produced by this Governor's approval of
// codeHash. Verification is over the historical record: a later rollback
// does not invalidate the signature, it appends a compensating entry that
// fresh capability checks consult instead.
func (g *Governor) Verify(codeHash, sig string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sign(codeHash) == sig
}

// Trust adds a signature to the pre-approved list. Idempotent; a full list
// is an explicit error.
func (g *Governor) Trust(sig string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, t := range g.trusted {
		if t == sig {
			return nil
		}
	}
	if len(g.trusted) >= g.cfg.TrustSlots {
		return fault.New(fault.KindExhausted, "trust_full", "all %d trusted signature slots in use", g.cfg.TrustSlots)
	}
	g.trusted = append(g.trusted, sig)
	return nil
}

// IsTrusted reports whether sig is on the pre-approved list.
func (g *Governor) IsTrusted(sig string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, t := range g.trusted {
		if t == sig {
			return true
		}
	}
	return false
}

// Evaluate judges one artifact.
//
// The pipeline: cache lookup, hard-decline pattern scan, capability
// inference, behavioral analysis, threat assessment, then the pure
// decision policy over (threat, strict, interactive). Every fresh
// judgment lands in history and the audit sink.
func (g *Governor) Evaluate(ctx context.Context, req Request) (Response, error) {
	if len(req.Code) == 0 && req.CodeHash == "" {
		return Response{}, fault.New(fault.KindInvalidInput, "empty_request", "request carries neither code nor hash")
	}
	codeHash := req.CodeHash
	if codeHash == "" {
		codeHash = sink.BlobHash(req.Code)
	}

	g.mu.Lock()
	if entry, ok := g.cache.lookup(codeHash); ok {
		resp := entry.Response
		resp.Cached = true
		g.mu.Unlock()
		slog.Debug("decision served from cache", "hash", codeHash, "hits", entry.HitCount)
		return resp, nil
	}
	g.stats.TotalEvaluations++
	strict, interactive := g.cfg.Strict, g.cfg.Interactive
	g.mu.Unlock()

	code := string(req.Code)
	resp := Response{CodeHash: codeHash}

	if lexeme := hardDecline(code); lexeme != "" {
		resp.Threat = ThreatCritical
		resp.DecisionBy = "policy"
		resp.DeclineReason = "contains architecturally forbidden destructive operation"
		resp.Reasoning = fmt.Sprintf("destructive lexeme %q is never admissible", lexeme)
		resp.Alternatives = hardDeclineAlternatives
		resp.Summary = fmt.Sprintf("Declined: %s (threat: %s)", displayName(req.Name), resp.Threat)
		return g.finalize(ctx, req, resp)
	}

	resp.Behavior = AnalyzeBehavior(code)
	inferred := detectCapabilities(code)
	effective := req.DeclaredCaps.Union(inferred)
	undeclared := inferred &^ req.DeclaredCaps

	threat := threatFromScore(resp.Behavior.SuspiciousScore)
	if !undeclared.Empty() {
		threat = threat.bump()
	}
	if effective.RequiresUser() {
		threat = threat.raise(ThreatMedium)
	}
	if effective.LoggedOnly() && resp.Behavior.SuspiciousScore < 30 {
		threat = threat.clamp(ThreatLow)
	}
	resp.Threat = threat

	switch decide(threat, strict, interactive) {
	case OutcomeApprove:
		resp = g.approve(req, resp, effective, "auto",
			"Code evaluation passed - within acceptable parameters")
	case OutcomeApproveLogged:
		resp = g.approve(req, resp, effective, "auto",
			"Medium threat admitted non-interactively; grant logged for review")
		slog.Info("medium-threat grant",
			"name", req.Name, "hash", codeHash, "caps", resp.GrantedCaps.String())
	case OutcomePrompt:
		approved, reason := g.askUser(ctx, req, resp, effective)
		if approved {
			resp = g.approve(req, resp, effective, "user", "User approved after review")
		} else {
			resp.DecisionBy = "user"
			resp.DeclineReason = reason
			resp.Reasoning = "interactive review did not approve the artifact"
			resp.Summary = fmt.Sprintf("Declined: %s (threat: %s)", displayName(req.Name), threat)
		}
	case OutcomeDecline:
		resp.DecisionBy = "policy"
		resp.DeclineReason = fmt.Sprintf("threat level %s not admissible under current policy", threat)
		resp.Reasoning = "decision table prescribes decline for this threat and mode"
		resp.Summary = fmt.Sprintf("Declined: %s (threat: %s)", displayName(req.Name), threat)
	}

	return g.finalize(ctx, req, resp)
}

func displayName(name string) string {
	if name == "" {
		return "unnamed"
	}
	return name
}

// approve fills the approval fields. GOVERNOR_BYPASS never rides an auto
// branch; only an explicit user approval can grant it.
func (g *Governor) approve(req Request, resp Response, effective capability.Set, by, reasoning string) Response {
	granted := effective
	if by != "user" {
		granted = granted.Without(capability.GovernorBypass)
	}
	resp.Approved = true
	resp.GrantedCaps = granted
	resp.DecisionBy = by
	resp.Reasoning = reasoning
	resp.Summary = fmt.Sprintf("Approved: %s (threat: %s)", displayName(req.Name), resp.Threat)

	g.mu.Lock()
	resp.Signature = g.sign(resp.CodeHash)
	resp.ApprovedAt = g.now()
	if g.cfg.ApprovalTTL > 0 {
		resp.ValidUntil = resp.ApprovedAt.Add(g.cfg.ApprovalTTL)
	}
	g.mu.Unlock()

	if !granted.Intersect(capability.Info).Empty() {
		slog.Info("info capability granted",
			"name", req.Name, "caps", granted.Intersect(capability.Info).String())
	}
	return resp
}

// askUser runs the prompt suspension point. A nil prompter, a prompt
// error, a context cancellation, or a timeout all decline.
func (g *Governor) askUser(ctx context.Context, req Request, resp Response, wanted capability.Set) (bool, string) {
	if g.prompter == nil {
		return false, "no interactive approver available"
	}
	promptCtx := ctx
	if g.cfg.PromptTimeout > 0 {
		var cancel context.CancelFunc
		promptCtx, cancel = context.WithTimeout(ctx, g.cfg.PromptTimeout)
		defer cancel()
	}
	approved, err := g.prompter.Ask(promptCtx, Prompt{
		Name:        req.Name,
		Description: req.Description,
		Threat:      resp.Threat,
		CapsWanted:  wanted.String(),
	})
	if err != nil {
		return false, "user prompt cancelled or timed out"
	}
	if !approved {
		return false, "user declined the request"
	}
	return true, ""
}

// finalize records the judgment: history entry, cache entry, stats, audit
// record. An audit failure is counted and surfaced but the decision itself
// stands - the caller already observed it.
func (g *Governor) finalize(ctx context.Context, req Request, resp Response) (Response, error) {
	g.mu.Lock()
	g.stats.ThreatCounts[resp.Threat]++
	switch {
	case resp.Approved && resp.DecisionBy == "user":
		g.stats.UserApproved++
	case resp.Approved:
		g.stats.AutoApproved++
	case resp.DecisionBy == "user":
		g.stats.UserDeclined++
	default:
		g.stats.AutoDeclined++
	}

	g.history.append(HistoryEntry{
		CodeHash:    resp.CodeHash,
		Approved:    resp.Approved,
		CanRollback: resp.Approved,
		Name:        req.Name,
		Threat:      resp.Threat,
		Caps:        resp.GrantedCaps,
		DecisionBy:  resp.DecisionBy,
		Summary:     resp.Summary,
		Timestamp:   g.now(),
	})

	g.cache.store(&CacheEntry{
		CodeHash:   resp.CodeHash,
		Response:   resp,
		Threat:     resp.Threat,
		CachedAt:   g.now(),
		ValidUntil: resp.ValidUntil,
	})
	g.mu.Unlock()

	kind := "decline"
	reasoning := resp.Reasoning
	if resp.Approved {
		kind = "approve"
	} else if resp.DeclineReason != "" {
		reasoning = resp.DeclineReason + ": " + resp.Reasoning
	}

	if err := g.appendAudit(ctx, sink.DecisionRecord{
		Source:       "governor",
		ArtifactHash: resp.CodeHash,
		Name:         req.Name,
		Description:  req.Description,
		Kind:         kind,
		Threat:       resp.Threat.String(),
		Caps:         uint32(resp.GrantedCaps),
		DecisionBy:   resp.DecisionBy,
		Summary:      resp.Summary,
		Reasoning:    reasoning,
	}); err != nil {
		return resp, err
	}

	slog.Info("decision recorded",
		"name", req.Name,
		"hash", resp.CodeHash,
		"approved", resp.Approved,
		"threat", resp.Threat.String(),
		"by", resp.DecisionBy)
	return resp, nil
}

func (g *Governor) appendAudit(ctx context.Context, rec sink.DecisionRecord) error {
	if g.audit == nil {
		return nil
	}
	if _, err := g.audit.Append(ctx, rec); err != nil {
		g.mu.Lock()
		g.stats.AuditFailures++
		g.mu.Unlock()
		slog.Warn("audit append failed", "artifact", rec.ArtifactHash, "error", err)
		return fault.Wrap(err, fault.KindIO, "audit_append", "decision stands but audit append failed")
	}
	return nil
}

// LogEvent is the log-only entry point other components use to file
// lifecycle events into the audit stream. The payload is never judged.
func (g *Governor) LogEvent(ctx context.Context, event, name, details string) error {
	return g.appendAudit(ctx, sink.DecisionRecord{
		Source:       "governor",
		ArtifactHash: sink.BlobHash([]byte(name)),
		Name:         name,
		Kind:         "log",
		Threat:       ThreatNone.String(),
		DecisionBy:   "log",
		Summary:      event,
		Reasoning:    details,
	})
}

// Stats returns a snapshot of the counters.
func (g *Governor) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}
