package dnauth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantomos/phantom/internal/fault"
)

func evolutionOptions() Options {
	return Options{
		EvolutionEnabled:  true,
		AllowAncestorAuth: true,
	}
}

func TestForceEvolve_AdvancesLineageAndRotatesKey(t *testing.T) {
	svc, audit, _ := newTestService(t, evolutionOptions())
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "carol", genomicSeq, RegisterOptions{}))

	ev, err := svc.ForceEvolve(ctx, "carol", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, ev.FromGeneration)
	assert.Equal(t, 2, ev.ToGeneration)
	assert.Len(t, ev.Mutations, 1)
	assert.True(t, ev.Forced)
	assert.NotEmpty(t, ev.ID)

	lin, err := svc.Lineage("carol")
	require.NoError(t, err)
	assert.Equal(t, 2, lin.TotalGenerations)
	assert.Equal(t, 2, lin.Current.ID)
	assert.False(t, lin.Generations[0].Active)
	assert.True(t, lin.Current.Active)

	// The live credential now answers to the evolved sequence, not the
	// registered one.
	m, err := svc.Authenticate(ctx, "carol", lin.Current.Sequence)
	require.NoError(t, err)
	assert.True(t, m.Exact)

	if lin.Current.Sequence != genomicSeq {
		_, err = svc.Authenticate(ctx, "carol", genomicSeq)
		assert.Error(t, err)
	}
	assert.True(t, audit.has(EventForcedEvolution))
}

func TestForceEvolve_ClampsAndValidates(t *testing.T) {
	svc, _, _ := newTestService(t, evolutionOptions())
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "carol", genomicSeq, RegisterOptions{}))

	ev, err := svc.ForceEvolve(ctx, "carol", 10)
	require.NoError(t, err)
	assert.Len(t, ev.Mutations, MaxMutationsPerGen)

	_, err = svc.ForceEvolve(ctx, "carol", 0)
	assert.True(t, fault.IsInvalidInput(err))

	_, err = svc.ForceEvolve(ctx, "nobody", 1)
	assert.True(t, fault.IsNotFound(err))
}

func TestAuthenticateAncestor_MatchesPriorGeneration(t *testing.T) {
	svc, audit, _ := newTestService(t, evolutionOptions())
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "carol", genomicSeq, RegisterOptions{}))
	for i := 0; i < 3; i++ {
		_, err := svc.ForceEvolve(ctx, "carol", 1)
		require.NoError(t, err)
	}

	lin, err := svc.Lineage("carol")
	require.NoError(t, err)
	require.Equal(t, 4, lin.TotalGenerations)

	// Mutations can in principle revert, so derive the expected depth from
	// the lineage rather than assuming the root is unique.
	rootSeq := lin.Generations[0].Sequence
	expectBack := 0
	for i := len(lin.Generations) - 1; i >= 0; i-- {
		if lin.Generations[i].Sequence == rootSeq {
			expectBack = len(lin.Generations) - 1 - i
			break
		}
	}

	m, err := svc.AuthenticateAncestor(ctx, "carol", rootSeq, 5)
	require.NoError(t, err)
	assert.True(t, m.Matched)
	assert.Equal(t, expectBack, m.GenerationMatched)
	assert.InDelta(t, float64(expectBack)*DefaultAncestorPenalty, m.Penalty, 1e-9)
	assert.True(t, audit.has(EventAncestorAuth))

	// The current generation matches at depth zero with no penalty.
	m, err = svc.AuthenticateAncestor(ctx, "carol", lin.Current.Sequence, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, m.GenerationMatched)
	assert.True(t, m.Exact)
	assert.InDelta(t, 0.0, m.Penalty, 1e-9)

	_, err = svc.AuthenticateAncestor(ctx, "carol", wrongSeq, 5)
	require.Error(t, err)
	assert.True(t, fault.IsDenied(err))
}

func TestAuthenticateAncestor_RespectsToggle(t *testing.T) {
	svc, _, _ := newTestService(t, Options{EvolutionEnabled: true})
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "carol", genomicSeq, RegisterOptions{}))
	_, err := svc.AuthenticateAncestor(ctx, "carol", genomicSeq, 5)
	require.Error(t, err)
	assert.True(t, fault.IsDenied(err))

	_, err = svc.AuthenticateAncestor(ctx, "nobody", genomicSeq, 5)
	assert.True(t, fault.IsNotFound(err))
}

func TestEvolve_MutationCountWithinBounds(t *testing.T) {
	svc, _, _ := newTestService(t, evolutionOptions())
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "carol", genomicSeq, RegisterOptions{}))
	ev, err := svc.Evolve(ctx, "carol")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(ev.Mutations), 1)
	assert.LessOrEqual(t, len(ev.Mutations), MaxMutationsPerGen)
	assert.False(t, ev.Forced)
}

func TestTick_EvolvesDueLineages(t *testing.T) {
	opts := evolutionOptions()
	opts.EvolutionInterval = time.Hour
	svc, _, clock := newTestService(t, opts)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "carol", genomicSeq, RegisterOptions{}))

	evolved, err := svc.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, evolved, "nothing is due yet")

	*clock = clock.Add(2 * time.Hour)
	evolved, err = svc.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, evolved)

	lin, err := svc.Lineage("carol")
	require.NoError(t, err)
	assert.Equal(t, 2, lin.TotalGenerations)
	assert.True(t, lin.NextEvolution.After(*clock))
}

func TestFitness_AdaptivePressurePenalizesFailures(t *testing.T) {
	opts := evolutionOptions()
	opts.Pressure = PressureAdaptive
	svc, _, _ := newTestService(t, opts)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "carol", genomicSeq, RegisterOptions{}))

	f, ok := svc.Fitness("carol")
	require.True(t, ok)
	assert.InDelta(t, 1.0, f, 1e-9)

	svc.Authenticate(ctx, "carol", wrongSeq)
	svc.Authenticate(ctx, "carol", wrongSeq)

	f, ok = svc.Fitness("carol")
	require.True(t, ok)
	assert.InDelta(t, 0.96, f, 1e-9)

	_, ok = svc.Fitness("nobody")
	assert.False(t, ok)
}

func TestLineage_ReturnsIsolatedSnapshot(t *testing.T) {
	svc, _, _ := newTestService(t, evolutionOptions())
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "carol", genomicSeq, RegisterOptions{}))
	lin, err := svc.Lineage("carol")
	require.NoError(t, err)

	lin.Generations[0].Sequence = "XXXX"
	again, err := svc.Lineage("carol")
	require.NoError(t, err)
	assert.Equal(t, genomicSeq, again.Generations[0].Sequence)

	_, err = svc.Lineage("nobody")
	assert.True(t, fault.IsNotFound(err))
}
