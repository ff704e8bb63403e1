package dnauth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantomos/phantom/internal/cryptorand"
	"github.com/phantomos/phantom/internal/fault"
)

const (
	genomicSeq = "ATGCATGCATGC"
	// Complement of genomicSeq; validates but never matches it.
	wrongSeq = "TACGTACGTACG"
)

// auditRecorder captures emitted lifecycle events for assertions.
type auditRecorder struct {
	events []string
}

func (a *auditRecorder) LogEvent(_ context.Context, event, name, details string) error {
	a.events = append(a.events, fmt.Sprintf("%s %s %s", event, name, details))
	return nil
}

func (a *auditRecorder) has(event string) bool {
	for _, e := range a.events {
		if len(e) >= len(event) && e[:len(event)] == event {
			return true
		}
	}
	return false
}

// newTestService returns a service on the OS random source with a
// controllable clock. Mutate *clock to advance time.
func newTestService(t *testing.T, opts Options) (*Service, *auditRecorder, *time.Time) {
	t.Helper()
	audit := &auditRecorder{}
	svc := New(audit, cryptorand.OS, opts)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.SetNow(func() time.Time { return clock })
	return svc, audit, &clock
}

func TestRegisterAndAuthenticate_Exact(t *testing.T) {
	svc, audit, _ := newTestService(t, Options{})
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "alice", genomicSeq, RegisterOptions{}))

	m, err := svc.Authenticate(ctx, "alice", genomicSeq)
	require.NoError(t, err)
	assert.True(t, m.Matched)
	assert.True(t, m.Exact)
	assert.InDelta(t, 1.0, m.Similarity, 1e-9)

	// Presentation normalization applies on the way in too.
	m, err = svc.Authenticate(ctx, "alice", " atgc atgc\natgc ")
	require.NoError(t, err)
	assert.True(t, m.Exact)

	key, err := svc.Key("alice")
	require.NoError(t, err)
	assert.Equal(t, 2, key.AuthCount)
	assert.Equal(t, 1, key.PasswordVersion)

	assert.True(t, audit.has(EventRegistration))
	assert.True(t, audit.has(EventAuthSuccess))
}

func TestRegister_RejectsDuplicateAndLowComplexity(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "alice", genomicSeq, RegisterOptions{}))
	err := svc.Register(ctx, "alice", genomicSeq, RegisterOptions{})
	assert.True(t, fault.IsAlreadyExists(err))

	err = svc.Register(ctx, "bob", "AAAAAAAAAAAA", RegisterOptions{})
	require.Error(t, err)
	assert.True(t, fault.IsInvalidInput(err))
}

func TestAuthenticate_WrongSequenceIsDenied(t *testing.T) {
	svc, audit, _ := newTestService(t, Options{})
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "alice", genomicSeq, RegisterOptions{}))
	_, err := svc.Authenticate(ctx, "alice", wrongSeq)
	require.Error(t, err)
	assert.True(t, fault.IsDenied(err))
	assert.True(t, audit.has(EventAuthFailure))

	_, err = svc.Authenticate(ctx, "nobody", genomicSeq)
	assert.True(t, fault.IsNotFound(err))
}

func TestAuthenticate_LockoutAfterFiveFailures(t *testing.T) {
	svc, audit, clock := newTestService(t, Options{})
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "bob", genomicSeq, RegisterOptions{}))

	for i := 0; i < DefaultMaxFailedAttempts; i++ {
		_, err := svc.Authenticate(ctx, "bob", wrongSeq)
		require.Error(t, err)
	}
	assert.True(t, audit.has(EventLockout))

	key, err := svc.Key("bob")
	require.NoError(t, err)
	assert.Equal(t, 1, key.LockoutEpisodes)
	assert.True(t, key.LockoutUntil.Equal(clock.Add(DefaultLockoutBase)))

	// Even the correct sequence is refused while locked, with a remedy
	// naming the retry time.
	_, err = svc.Authenticate(ctx, "bob", genomicSeq)
	require.Error(t, err)
	assert.True(t, fault.IsDenied(err))
	var f *fault.Fault
	require.True(t, errors.As(err, &f))
	assert.Contains(t, f.Remedy, "retry after")

	// Past the lockout boundary the account unlocks and a success clears
	// the episode counter.
	*clock = clock.Add(DefaultLockoutBase + time.Second)
	m, err := svc.Authenticate(ctx, "bob", genomicSeq)
	require.NoError(t, err)
	assert.True(t, m.Exact)

	key, err = svc.Key("bob")
	require.NoError(t, err)
	assert.Equal(t, 0, key.LockoutEpisodes)
	assert.True(t, key.LockoutUntil.IsZero())
}

func TestAuthenticate_LockoutBackoffDoubles(t *testing.T) {
	svc, _, clock := newTestService(t, Options{})
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "bob", genomicSeq, RegisterOptions{}))

	for i := 0; i < DefaultMaxFailedAttempts; i++ {
		svc.Authenticate(ctx, "bob", wrongSeq)
	}
	*clock = clock.Add(DefaultLockoutBase + time.Second)

	// A second episode without an intervening success doubles the backoff.
	for i := 0; i < DefaultMaxFailedAttempts; i++ {
		svc.Authenticate(ctx, "bob", wrongSeq)
	}
	key, err := svc.Key("bob")
	require.NoError(t, err)
	assert.Equal(t, 2, key.LockoutEpisodes)
	assert.True(t, key.LockoutUntil.Equal(clock.Add(2*DefaultLockoutBase)))

	st := svc.Stats()
	assert.Equal(t, 2, st.Lockouts)
	assert.Equal(t, 10, st.FailedAuths)
}

func TestAuthenticate_LockoutThresholdConfigurable(t *testing.T) {
	svc, _, clock := newTestService(t, Options{MaxFailedAttempts: 3})
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "bob", genomicSeq, RegisterOptions{}))

	for i := 0; i < 2; i++ {
		svc.Authenticate(ctx, "bob", wrongSeq)
	}
	key, err := svc.Key("bob")
	require.NoError(t, err)
	assert.True(t, key.LockoutUntil.IsZero(), "two failures stay under a threshold of three")

	svc.Authenticate(ctx, "bob", wrongSeq)
	key, err = svc.Key("bob")
	require.NoError(t, err)
	assert.Equal(t, 1, key.LockoutEpisodes)
	assert.True(t, key.LockoutUntil.Equal(clock.Add(DefaultLockoutBase)))

	_, err = svc.Authenticate(ctx, "bob", genomicSeq)
	assert.True(t, fault.IsDenied(err))
}

func TestAuthenticate_Fuzzy(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := context.Background()

	fuzzy := ModeFuzzy
	base := "ATGCATGCATGCATGC"
	require.NoError(t, svc.Register(ctx, "dana", base, RegisterOptions{Mode: &fuzzy}))

	// One substitution is within the default tolerance of three.
	m, err := svc.Authenticate(ctx, "dana", "ATGCATGCATGCATGA")
	require.NoError(t, err)
	assert.True(t, m.Matched)
	assert.False(t, m.Exact)
	assert.Equal(t, 1, m.Mutations)
	assert.InDelta(t, 15.0/16.0, m.Similarity, 1e-9)

	// Four substitutions exceed it.
	_, err = svc.Authenticate(ctx, "dana", "CTGCCTGCCTGCCTGC")
	require.Error(t, err)
	assert.True(t, fault.IsDenied(err))

	// The untouched sequence still matches exactly.
	m, err = svc.Authenticate(ctx, "dana", base)
	require.NoError(t, err)
	assert.True(t, m.Exact)
}

func TestAuthenticate_CodonExactAcceptsSynonymousCodons(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := context.Background()

	codon := ModeCodonExact
	// ATG CTT AAA GGC translates to MLKG.
	require.NoError(t, svc.Register(ctx, "erin", "ATGCTTAAAGGC", RegisterOptions{Mode: &codon}))

	key, err := svc.Key("erin")
	require.NoError(t, err)
	assert.Equal(t, KDFCodon, key.KDF, "codon modes force the codon KDF")

	// CTG and GGA are synonymous with CTT and GGC.
	m, err := svc.Authenticate(ctx, "erin", "ATGCTGAAAGGA")
	require.NoError(t, err)
	assert.True(t, m.Matched)

	// AAC codes asparagine, not lysine.
	_, err = svc.Authenticate(ctx, "erin", "ATGCTTAACGGC")
	require.Error(t, err)
	assert.True(t, fault.IsDenied(err))
}

func TestRevoke(t *testing.T) {
	svc, audit, _ := newTestService(t, Options{})
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "alice", genomicSeq, RegisterOptions{}))
	require.NoError(t, svc.Revoke(ctx, "alice", "compromised"))

	_, err := svc.Authenticate(ctx, "alice", genomicSeq)
	assert.True(t, fault.IsDenied(err))

	err = svc.ChangeKey(ctx, "alice", "GATTACAGATTACA")
	assert.True(t, fault.IsDenied(err), "a revoked credential cannot be rekeyed")

	assert.True(t, fault.IsNotFound(svc.Revoke(ctx, "nobody", "x")))
	assert.True(t, audit.has(EventRevocation))
}

func TestChangeKey_BumpsVersionAndClearsLockout(t *testing.T) {
	svc, audit, _ := newTestService(t, Options{EvolutionEnabled: true})
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "bob", genomicSeq, RegisterOptions{}))
	_, err := svc.ForceEvolve(ctx, "bob", 1)
	require.NoError(t, err)
	for i := 0; i < DefaultMaxFailedAttempts; i++ {
		svc.Authenticate(ctx, "bob", wrongSeq)
	}

	const next = "GATTACAGATTACA"
	require.NoError(t, svc.ChangeKey(ctx, "bob", next))

	key, err := svc.Key("bob")
	require.NoError(t, err)
	assert.Equal(t, 2, key.PasswordVersion)
	assert.True(t, key.LockoutUntil.IsZero())
	assert.Equal(t, 0, key.LockoutEpisodes)

	m, err := svc.Authenticate(ctx, "bob", next)
	require.NoError(t, err)
	assert.True(t, m.Exact)

	// Rekeying restarts the lineage at generation one.
	lin, err := svc.Lineage("bob")
	require.NoError(t, err)
	assert.Equal(t, 1, lin.TotalGenerations)
	assert.Equal(t, next, lin.Current.Sequence)

	assert.True(t, audit.has(EventKeyChange))
}

func TestAuthenticate_ExpiredCredential(t *testing.T) {
	svc, _, clock := newTestService(t, Options{})
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "alice", genomicSeq, RegisterOptions{
		ExpiresAt: clock.Add(time.Hour),
	}))

	_, err := svc.Authenticate(ctx, "alice", genomicSeq)
	require.NoError(t, err)

	*clock = clock.Add(2 * time.Hour)
	_, err = svc.Authenticate(ctx, "alice", genomicSeq)
	require.Error(t, err)
	assert.True(t, fault.IsDenied(err))
}

func TestAttemptsLog_NewestFirst(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "alice", genomicSeq, RegisterOptions{}))
	svc.Authenticate(ctx, "alice", wrongSeq)
	svc.Authenticate(ctx, "alice", genomicSeq)

	attempts := svc.Attempts()
	require.Len(t, attempts, 2)
	assert.Equal(t, "ok", attempts[0].Result)
	assert.Equal(t, "no_match", attempts[1].Result)
	assert.Greater(t, attempts[0].ID, attempts[1].ID)

	st := svc.Stats()
	assert.Equal(t, 1, st.Users)
	assert.Equal(t, 2, st.TotalAuths)
	assert.Equal(t, 1, st.SuccessfulAuths)
	assert.Equal(t, 1, st.FailedAuths)
}
