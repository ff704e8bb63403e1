package dnauth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phantomos/phantom/internal/dna"
	"github.com/phantomos/phantom/internal/fault"
)

// Authenticate checks a presented sequence against the stored credential in
// the key's registered mode.
//
// Preconditions checked in order: user exists, not revoked, not expired,
// not locked out. A malformed presentation counts as a failed attempt.
// After MaxFailedAttempts consecutive failures the account locks for
// LockoutBase doubled per lockout episode, capped at LockoutCap; at
// LockoutUntil the next attempt is allowed again.
func (s *Service) Authenticate(ctx context.Context, userID, rawSeq string) (Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[userID]
	if !ok {
		s.logAttempt(userID, "user_not_found")
		return Match{}, fault.New(fault.KindNotFound, "user", "no credential for user %q", userID)
	}
	if key.Revoked {
		s.logAttempt(userID, "revoked")
		return Match{}, fault.New(fault.KindDenied, "revoked", "credential for %q is revoked", userID)
	}
	now := s.now()
	if !key.ExpiresAt.IsZero() && now.After(key.ExpiresAt) {
		s.logAttempt(userID, "expired")
		return Match{}, fault.New(fault.KindDenied, "expired", "credential for %q expired", userID)
	}
	if !key.LockoutUntil.IsZero() && now.Before(key.LockoutUntil) {
		s.logAttempt(userID, "locked")
		f := fault.New(fault.KindDenied, "user_locked", "user %q is locked out", userID)
		f.Remedy = fmt.Sprintf("retry after %s", key.LockoutUntil.Format(time.RFC3339))
		return Match{}, f
	}

	seq, err := dna.Validate(rawSeq)
	if err != nil {
		s.recordFailure(ctx, key, "invalid_sequence")
		return Match{}, err
	}

	if deriveHash(key.Salt[:], seq, key.KDF) == key.Hash {
		return s.recordSuccess(ctx, key, Match{Matched: true, Exact: true, Similarity: 1.0}), nil
	}

	if key.Mode == ModeFuzzy && key.refSequence != "" {
		d, derr := dna.Levenshtein(seq.Nucleotides, key.refSequence)
		if derr != nil {
			s.recordFailure(ctx, key, "fuzzy_bound")
			return Match{}, derr
		}
		if d <= key.MaxMutations {
			return s.recordSuccess(ctx, key, Match{
				Matched:    true,
				Mutations:  d,
				Similarity: dna.Similarity(seq.Nucleotides, key.refSequence, d),
			}), nil
		}
	}

	s.recordFailure(ctx, key, "no_match")
	return Match{}, fault.New(fault.KindDenied, "no_match", "sequence does not match credential for %q", userID)
}

// recordSuccess updates counters and emits the success record.
// Caller holds the mutex.
func (s *Service) recordSuccess(ctx context.Context, key *Key, m Match) Match {
	key.FailedAttempts = 0
	key.LockoutUntil = time.Time{}
	key.LockoutEpisodes = 0
	key.LastUsed = s.now()
	key.AuthCount++
	s.stats.TotalAuths++
	s.stats.SuccessfulAuths++

	if l, ok := s.lineages[key.UserID]; ok && l.Current != nil {
		l.Current.AuthCount++
		l.TotalAuths++
	}

	s.logAttempt(key.UserID, "ok")
	slog.Info("authentication successful", "user", key.UserID, "exact", m.Exact)
	s.emit(ctx, EventAuthSuccess, key.UserID,
		fmt.Sprintf("exact=%t mutations=%d", m.Exact, m.Mutations))
	return m
}

// recordFailure updates counters, applies lockout policy, and emits the
// failure record. Caller holds the mutex.
func (s *Service) recordFailure(ctx context.Context, key *Key, reason string) {
	key.FailedAttempts++
	s.stats.TotalAuths++
	s.stats.FailedAuths++

	if l, ok := s.lineages[key.UserID]; ok && l.Current != nil {
		l.Current.FailedCount++
	}

	if key.FailedAttempts >= s.opts.MaxFailedAttempts {
		backoff := s.opts.LockoutBase << uint(key.LockoutEpisodes)
		if backoff > LockoutCap {
			backoff = LockoutCap
		}
		key.LockoutUntil = s.now().Add(backoff)
		key.LockoutEpisodes++
		key.FailedAttempts = 0
		s.stats.Lockouts++

		slog.Warn("user locked out", "user", key.UserID, "until", key.LockoutUntil)
		if s.opts.OnLockout != nil {
			s.opts.OnLockout(key.UserID)
		}
		s.emit(ctx, EventLockout, key.UserID,
			fmt.Sprintf("until=%s episode=%d", key.LockoutUntil.Format(time.RFC3339), key.LockoutEpisodes))
	}

	s.logAttempt(key.UserID, reason)
	s.emit(ctx, EventAuthFailure, key.UserID, "reason="+reason)
}

// AuthenticateAncestor retries a presentation against up to maxBack prior
// generations of the user's lineage. A match k generations back reports
// GenerationMatched = k and the advisory penalty k * ancestor penalty; how
// the penalty is applied is the caller's concern. Extinct generations are
// skipped.
func (s *Service) AuthenticateAncestor(ctx context.Context, userID, rawSeq string, maxBack int) (Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lineage, ok := s.lineages[userID]
	if !ok {
		return Match{}, fault.New(fault.KindNotFound, "lineage", "no lineage for user %q", userID)
	}
	if !lineage.AllowAncestorAuth {
		return Match{}, fault.New(fault.KindDenied, "ancestor_auth", "ancestor authentication disabled for %q", userID)
	}
	if maxBack > lineage.MaxAncestorDepth {
		maxBack = lineage.MaxAncestorDepth
	}

	seq, err := dna.Validate(rawSeq)
	if err != nil {
		return Match{}, err
	}

	for back := 0; back <= maxBack; back++ {
		gen := lineage.Ancestor(back)
		if gen == nil || gen.Extinct {
			continue
		}
		if seq.Nucleotides == gen.Sequence {
			gen.AuthCount++
			lineage.TotalAuths++
			penalty := float64(back) * lineage.AncestorPenalty

			slog.Info("ancestor authentication matched", "user", userID, "back", back, "penalty", penalty)
			s.emit(ctx, EventAncestorAuth, userID,
				fmt.Sprintf("generation_matched=%d penalty=%.2f", back, penalty))
			return Match{
				Matched:           true,
				Exact:             back == 0,
				Similarity:        1.0,
				GenerationMatched: back,
				Penalty:           penalty,
			}, nil
		}
	}

	if lineage.Current != nil {
		lineage.Current.FailedCount++
	}
	s.emit(ctx, EventAuthFailure, userID, "reason=no_ancestor_match")
	return Match{}, fault.New(fault.KindDenied, "no_match",
		"sequence matches no generation within %d steps for %q", maxBack, userID)
}
