// Package dnauth implements DNA-sequence credentials: registration, exact
// and fuzzy authentication, lockout with exponential backoff, evolutionary
// lineages, and time-bounded ancestor authentication.
//
// The service treats the Governor purely as an audit collaborator: every
// credential lifecycle event is logged through the injected AuditLog, and
// the Governor is never asked to judge a sequence as code.
package dnauth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phantomos/phantom/internal/cryptorand"
	"github.com/phantomos/phantom/internal/dna"
	"github.com/phantomos/phantom/internal/fault"
)

// Lockout policy: after MaxFailedAttempts consecutive failures the account
// locks for LockoutBase, doubling per lockout episode up to LockoutCap.
const (
	DefaultMaxFailedAttempts = 5
	DefaultLockoutBase       = 900 * time.Second
	LockoutCap               = 24 * time.Hour
)

// Credential lifecycle event types logged through the Governor.
const (
	EventRegistration    = "REGISTRATION"
	EventRevocation      = "REVOCATION"
	EventAuthSuccess     = "AUTH_SUCCESS"
	EventAuthFailure     = "AUTH_FAILURE"
	EventLockout         = "LOCKOUT"
	EventEvolution       = "EVOLUTION"
	EventForcedEvolution = "FORCED_EVOLUTION"
	EventAncestorAuth    = "ANCESTOR_AUTH"
	EventKeyChange       = "KEY_CHANGE"
)

// AuditLog receives log-only credential lifecycle events. The Governor's
// log entry point satisfies this.
type AuditLog interface {
	LogEvent(ctx context.Context, event, name, details string) error
}

// Options configures a Service. Zero values select the documented defaults.
type Options struct {
	MinComplexity       dna.Complexity // default Medium
	DefaultMode         Mode
	DefaultKDF          KDF
	DefaultMaxMutations int // default 3

	MaxFailedAttempts int           // default 5
	LockoutBase       time.Duration // default 900s

	EvolutionEnabled  bool
	EvolutionInterval time.Duration // default 7 days
	MutationRate      float64       // default 0.02
	Pressure          Pressure
	AllowAncestorAuth bool
	MaxAncestorDepth  int     // default 5
	AncestorPenalty   float64 // default 0.1

	MaxAttemptLog int // default 1000

	// OnLockout and OnFitnessWarning are optional notification hooks.
	OnLockout        func(userID string)
	OnFitnessWarning func(userID string, fitness float64)
}

func (o Options) withDefaults() Options {
	if o.MinComplexity == 0 {
		o.MinComplexity = dna.ComplexityMedium
	}
	if o.DefaultMaxMutations == 0 {
		o.DefaultMaxMutations = MaxMutationsPerGen
	}
	if o.MaxFailedAttempts == 0 {
		o.MaxFailedAttempts = DefaultMaxFailedAttempts
	}
	if o.LockoutBase == 0 {
		o.LockoutBase = DefaultLockoutBase
	}
	if o.EvolutionInterval == 0 {
		o.EvolutionInterval = DefaultEvolutionInterval
	}
	if o.MutationRate == 0 {
		o.MutationRate = DefaultMutationRate
	}
	if o.MaxAncestorDepth == 0 {
		o.MaxAncestorDepth = DefaultMaxAncestorDepth
	}
	if o.AncestorPenalty == 0 {
		o.AncestorPenalty = DefaultAncestorPenalty
	}
	if o.MaxAttemptLog == 0 {
		o.MaxAttemptLog = 1000
	}
	return o
}

// Attempt is one entry in the bounded authentication log, newest first.
type Attempt struct {
	ID        int
	UserID    string
	Timestamp time.Time
	Result    string
	Source    string
}

// Match describes a successful or failed authentication.
type Match struct {
	Matched           bool
	Exact             bool
	Mutations         int     // edit distance for fuzzy matches
	Similarity        float64 // 1 - d/max(len)
	GenerationMatched int     // ancestor auth: generations back; 0 = current
	Penalty           float64 // advisory: GenerationMatched * ancestor penalty
}

// Stats summarizes service activity.
type Stats struct {
	Users           int
	TotalAuths      int
	SuccessfulAuths int
	FailedAuths     int
	Lockouts        int
	Evolutions      int
}

// Service owns all keys and lineages. Safe for concurrent use; every entry
// point serializes on the internal mutex.
type Service struct {
	mu       sync.Mutex
	keys     map[string]*Key
	lineages map[string]*Lineage
	attempts []Attempt
	nextID   int
	stats    Stats

	opts  Options
	audit AuditLog
	rand  cryptorand.Source
	now   func() time.Time
}

// New creates a Service. audit may be nil (events are then only logged
// locally); src must not be nil.
func New(audit AuditLog, src cryptorand.Source, opts Options) *Service {
	return &Service{
		keys:     make(map[string]*Key),
		lineages: make(map[string]*Lineage),
		opts:     opts.withDefaults(),
		audit:    audit,
		rand:     src,
		now:      time.Now,
	}
}

// SetNow overrides the wall clock, for tests.
func (s *Service) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// emit sends a lifecycle event to the audit log. Audit failures never fail
// the operation that produced the event; they are counted and logged.
func (s *Service) emit(ctx context.Context, event, userID, details string) {
	if s.audit == nil {
		return
	}
	name := fmt.Sprintf("DNAuth:%s", userID)
	if err := s.audit.LogEvent(ctx, event, name, details); err != nil {
		slog.Warn("credential audit emit failed", "event", event, "user", userID, "error", err)
	}
}

func (s *Service) logAttempt(userID, result string) {
	s.nextID++
	s.attempts = append([]Attempt{{
		ID:        s.nextID,
		UserID:    userID,
		Timestamp: s.now(),
		Result:    result,
		Source:    "local",
	}}, s.attempts...)
	if len(s.attempts) > s.opts.MaxAttemptLog {
		s.attempts = s.attempts[:s.opts.MaxAttemptLog]
	}
}

// RegisterOptions override service defaults for one registration.
type RegisterOptions struct {
	Mode         *Mode
	KDF          *KDF
	MaxMutations *int
	ExpiresAt    time.Time
}

// Register binds a user to a sequence. The sequence must validate and meet
// the configured minimum complexity; the user must not already exist.
// ModeCodonExact and ModeProtein force the codon KDF. With evolution
// enabled, a lineage is rooted at this sequence as generation 1.
func (s *Service) Register(ctx context.Context, userID, rawSeq string, regOpts RegisterOptions) error {
	seq, err := dna.Validate(rawSeq)
	if err != nil {
		return err
	}
	if c := seq.Complexity(); c < s.opts.MinComplexity {
		return fault.New(fault.KindInvalidInput, "low_complexity",
			"sequence complexity %s below required %s", c, s.opts.MinComplexity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[userID]; ok {
		return fault.New(fault.KindAlreadyExists, "user", "user %q already registered", userID)
	}

	mode := s.opts.DefaultMode
	if regOpts.Mode != nil {
		mode = *regOpts.Mode
	}
	kdf := s.opts.DefaultKDF
	if regOpts.KDF != nil {
		kdf = *regOpts.KDF
	}
	if mode == ModeCodonExact || mode == ModeProtein {
		kdf = KDFCodon
	}
	maxMut := s.opts.DefaultMaxMutations
	if regOpts.MaxMutations != nil {
		maxMut = *regOpts.MaxMutations
	}

	salt, err := newSalt(s.rand)
	if err != nil {
		return err
	}

	key := &Key{
		UserID:          userID,
		Salt:            salt,
		Hash:            deriveHash(salt[:], seq, kdf),
		KDF:             kdf,
		Mode:            mode,
		MaxMutations:    maxMut,
		CreatedAt:       s.now(),
		ExpiresAt:       regOpts.ExpiresAt,
		PasswordVersion: 1,
	}
	if mode == ModeFuzzy {
		key.refSequence = seq.Nucleotides
	}
	s.keys[userID] = key

	if s.opts.EvolutionEnabled {
		s.lineages[userID] = s.newLineage(userID, seq.Nucleotides, salt, key.Hash)
	}

	slog.Info("credential registered", "user", userID, "mode", mode.String(), "kdf", kdf.String())
	s.emit(ctx, EventRegistration, userID,
		fmt.Sprintf("mode=%s kdf=%s length=%d", mode, kdf, seq.Len()))
	return nil
}

func (s *Service) newLineage(userID, sequence string, salt [SaltLen]byte, hash string) *Lineage {
	gen := &Generation{
		ID:        1,
		ParentID:  0,
		CreatedAt: s.now(),
		Sequence:  sequence,
		Salt:      salt,
		Fitness:   1.0,
		Active:    true,
	}
	gen.SequenceHash = hash
	return &Lineage{
		UserID:            userID,
		Generations:       []*Generation{gen},
		Current:           gen,
		TotalGenerations:  1,
		Pressure:          s.opts.Pressure,
		MutationRate:      s.opts.MutationRate,
		EvolutionInterval: s.opts.EvolutionInterval,
		NextEvolution:     s.now().Add(s.opts.EvolutionInterval),
		AllowAncestorAuth: s.opts.AllowAncestorAuth,
		MaxAncestorDepth:  s.opts.MaxAncestorDepth,
		AncestorPenalty:   s.opts.AncestorPenalty,
		CumulativeFitness: 1.0,
	}
}

// Revoke marks a credential revoked. The key stays in the table.
func (s *Service) Revoke(ctx context.Context, userID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[userID]
	if !ok {
		return fault.New(fault.KindNotFound, "user", "no credential for user %q", userID)
	}
	key.Revoked = true
	key.RevokeReason = reason

	slog.Info("credential revoked", "user", userID, "reason", reason)
	s.emit(ctx, EventRevocation, userID, "reason="+reason)
	return nil
}

// ChangeKey rebinds a user to a new sequence under a fresh salt, bumping
// the password version and clearing any lockout. With evolution enabled
// the lineage restarts at the new sequence.
func (s *Service) ChangeKey(ctx context.Context, userID, newRaw string) error {
	seq, err := dna.Validate(newRaw)
	if err != nil {
		return err
	}
	if c := seq.Complexity(); c < s.opts.MinComplexity {
		return fault.New(fault.KindInvalidInput, "low_complexity",
			"sequence complexity %s below required %s", c, s.opts.MinComplexity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[userID]
	if !ok {
		return fault.New(fault.KindNotFound, "user", "no credential for user %q", userID)
	}
	if key.Revoked {
		return fault.New(fault.KindDenied, "revoked", "credential for %q is revoked", userID)
	}

	salt, err := newSalt(s.rand)
	if err != nil {
		return err
	}

	key.Salt = salt
	key.Hash = deriveHash(salt[:], seq, key.KDF)
	key.PasswordVersion++
	key.FailedAttempts = 0
	key.LockoutUntil = time.Time{}
	key.LockoutEpisodes = 0
	if key.Mode == ModeFuzzy {
		key.refSequence = seq.Nucleotides
	}
	if s.opts.EvolutionEnabled {
		s.lineages[userID] = s.newLineage(userID, seq.Nucleotides, salt, key.Hash)
	}

	slog.Info("credential key changed", "user", userID, "version", key.PasswordVersion)
	s.emit(ctx, EventKeyChange, userID, fmt.Sprintf("version=%d", key.PasswordVersion))
	return nil
}

// Key returns a copy of the stored credential for inspection.
func (s *Service) Key(userID string) (Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[userID]
	if !ok {
		return Key{}, fault.New(fault.KindNotFound, "user", "no credential for user %q", userID)
	}
	return *key, nil
}

// Attempts returns the bounded authentication log, newest first.
func (s *Service) Attempts() []Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Attempt, len(s.attempts))
	copy(out, s.attempts)
	return out
}

// Stats returns service counters.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Users = len(s.keys)
	return st
}
