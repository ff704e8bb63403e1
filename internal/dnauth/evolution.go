package dnauth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/phantomos/phantom/internal/cryptorand"
	"github.com/phantomos/phantom/internal/dna"
	"github.com/phantomos/phantom/internal/fault"
)

// appliedTypes are the mutation types sampled at generation time. Segment
// types stay in the vocabulary but are never drawn.
var appliedTypes = []EvolutionType{EvoPoint, EvoTransition, EvoTransversion, EvoInsertion, EvoDeletion}

// differentNucleotide draws a uniformly random nucleotide distinct from nt.
func differentNucleotide(src cryptorand.Source, nt byte) (byte, error) {
	const alphabet = "ATGC"
	others := make([]byte, 0, 3)
	for i := 0; i < 4; i++ {
		if alphabet[i] != nt {
			others = append(others, alphabet[i])
		}
	}
	k, err := cryptorand.IntN(src, len(others))
	if err != nil {
		return 0, err
	}
	return others[k], nil
}

// transitionPartner swaps within the purine or pyrimidine class.
func transitionPartner(nt byte) byte {
	switch nt {
	case 'A':
		return 'G'
	case 'G':
		return 'A'
	case 'T':
		return 'C'
	case 'C':
		return 'T'
	}
	return nt
}

// transversionPartner crosses classes, choosing the partner at random.
func transversionPartner(src cryptorand.Source, nt byte) (byte, error) {
	coin, err := cryptorand.IntN(src, 2)
	if err != nil {
		return 0, err
	}
	switch nt {
	case 'A', 'G':
		if coin == 0 {
			return 'T', nil
		}
		return 'C', nil
	case 'T', 'C':
		if coin == 0 {
			return 'A', nil
		}
		return 'G', nil
	}
	return nt, nil
}

// generateMutation draws one mutation against the given sequence. Every
// draw comes from the cryptographic source; a source failure aborts.
func (s *Service) generateMutation(sequence string, typ EvolutionType) (Mutation, error) {
	pos, err := cryptorand.IntN(s.rand, len(sequence))
	if err != nil {
		return Mutation{}, err
	}
	mut := Mutation{Type: typ, Position: pos, Original: sequence[pos], Timestamp: s.now()}

	switch typ {
	case EvoPoint:
		mut.Mutated, err = differentNucleotide(s.rand, mut.Original)
		mut.FitnessImpact = -0.05
	case EvoTransition:
		mut.Mutated = transitionPartner(mut.Original)
		mut.FitnessImpact = -0.02
	case EvoTransversion:
		mut.Mutated, err = transversionPartner(s.rand, mut.Original)
		mut.FitnessImpact = -0.08
	case EvoInsertion:
		var k int
		k, err = cryptorand.IntN(s.rand, 4)
		mut.Mutated = "ATGC"[k]
		mut.Original = '-'
		mut.FitnessImpact = -0.10
	case EvoDeletion:
		mut.Mutated = '-'
		mut.FitnessImpact = -0.10
	default:
		// Segment-level tags collapse to a point substitution.
		mut.Mutated, err = differentNucleotide(s.rand, mut.Original)
		mut.FitnessImpact = -0.15
	}
	if err != nil {
		return Mutation{}, err
	}
	return mut, nil
}

// applyMutation produces the mutated sequence. A deletion at the minimum
// length degrades to a substitution so the invariant 12 ≤ length holds.
func (s *Service) applyMutation(sequence string, mut Mutation) (string, error) {
	n := len(sequence)
	pos := mut.Position
	if pos > n {
		pos = n
	}

	switch mut.Type {
	case EvoInsertion:
		return sequence[:pos] + string(mut.Mutated) + sequence[pos:], nil
	case EvoDeletion:
		if pos >= n {
			pos = n - 1
		}
		if n <= dna.MinLen {
			sub, err := differentNucleotide(s.rand, sequence[pos])
			if err != nil {
				return "", err
			}
			return sequence[:pos] + string(sub) + sequence[pos+1:], nil
		}
		return sequence[:pos] + sequence[pos+1:], nil
	default:
		if pos >= n {
			return sequence, nil
		}
		return sequence[:pos] + string(mut.Mutated) + sequence[pos+1:], nil
	}
}

// Evolve advances a due-or-not lineage one generation. The mutation count
// is Binomial(3, mutation rate) with a minimum of one.
func (s *Service) Evolve(ctx context.Context, userID string) (*EvolutionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lineage, ok := s.lineages[userID]
	if !ok {
		return nil, fault.New(fault.KindNotFound, "lineage", "no lineage for user %q", userID)
	}

	n := 0
	for i := 0; i < MaxMutationsPerGen; i++ {
		hit, err := cryptorand.Bernoulli(s.rand, lineage.MutationRate)
		if err != nil {
			return nil, err
		}
		if hit {
			n++
		}
	}
	if n == 0 {
		n = 1
	}
	return s.evolveLocked(ctx, lineage, n, false)
}

// ForceEvolve advances a lineage by exactly n mutations regardless of
// schedule. n is clamped to the per-generation maximum.
func (s *Service) ForceEvolve(ctx context.Context, userID string, n int) (*EvolutionEvent, error) {
	if n <= 0 {
		return nil, fault.New(fault.KindInvalidInput, "mutations", "mutation count must be positive, got %d", n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lineage, ok := s.lineages[userID]
	if !ok {
		return nil, fault.New(fault.KindNotFound, "lineage", "no lineage for user %q", userID)
	}
	return s.evolveLocked(ctx, lineage, n, true)
}

// evolveLocked performs one generation step. All randomness is drawn and
// the new generation fully constructed before any state mutates, so a
// random-source failure leaves the lineage untouched. Caller holds the
// mutex.
func (s *Service) evolveLocked(ctx context.Context, lineage *Lineage, n int, forced bool) (*EvolutionEvent, error) {
	if lineage.TotalGenerations >= MaxGenerations {
		return nil, fault.New(fault.KindExhausted, "generations",
			"lineage for %q at maximum of %d generations", lineage.UserID, MaxGenerations)
	}
	current := lineage.Current
	if current == nil {
		return nil, fault.New(fault.KindCorruptState, "lineage", "lineage for %q has no current generation", lineage.UserID)
	}
	if n > MaxMutationsPerGen {
		n = MaxMutationsPerGen
	}

	event := &EvolutionEvent{
		ID:             uuid.NewString(),
		UserID:         lineage.UserID,
		FromGeneration: current.ID,
		FitnessBefore:  current.Fitness,
		Forced:         forced,
		Timestamp:      s.now(),
	}

	// Positions are drawn against the pre-mutation sequence; mutations
	// then apply in order.
	for i := 0; i < n; i++ {
		k, err := cryptorand.IntN(s.rand, len(appliedTypes))
		if err != nil {
			return nil, err
		}
		mut, err := s.generateMutation(current.Sequence, appliedTypes[k])
		if err != nil {
			return nil, err
		}
		event.Mutations = append(event.Mutations, mut)
	}

	newSeq := current.Sequence
	for _, mut := range event.Mutations {
		var err error
		newSeq, err = s.applyMutation(newSeq, mut)
		if err != nil {
			return nil, err
		}
	}

	validated, err := dna.Validate(newSeq)
	if err != nil {
		return nil, fault.Wrap(err, fault.KindCorruptState, "evolved_sequence",
			"evolved sequence for %q fails validation", lineage.UserID)
	}

	salt, err := newSalt(s.rand)
	if err != nil {
		return nil, err
	}

	key := s.keys[lineage.UserID]
	kdf := KDFBinary
	if key != nil {
		kdf = key.KDF
	}
	hash := deriveHash(salt[:], validated, kdf)

	fitness := current.Fitness
	for _, mut := range event.Mutations {
		fitness += mut.FitnessImpact
	}
	if fitness < 0.1 {
		fitness = 0.1
	}
	if fitness > 1.0 {
		fitness = 1.0
	}

	newGen := &Generation{
		ID:           lineage.TotalGenerations + 1,
		ParentID:     current.ID,
		CreatedAt:    s.now(),
		Sequence:     validated.Nucleotides,
		SequenceHash: hash,
		Salt:         salt,
		Mutations:    event.Mutations,
		Fitness:      fitness,
		Active:       true,
	}

	// Commit.
	current.Active = false
	current.EvolvedAt = s.now()
	lineage.Generations = append(lineage.Generations, newGen)
	lineage.Current = newGen
	lineage.TotalGenerations++
	lineage.TotalMutations += len(event.Mutations)
	lineage.CumulativeFitness = fitness
	lineage.NextEvolution = s.now().Add(lineage.EvolutionInterval)

	// The live credential rotates with the lineage: the presented sequence
	// must now match the new generation, while prior generations remain
	// reachable through ancestor authentication.
	if key != nil {
		key.Salt = salt
		key.Hash = hash
		if key.Mode == ModeFuzzy {
			key.refSequence = validated.Nucleotides
		}
	}

	event.ToGeneration = newGen.ID
	event.FitnessAfter = fitness
	s.stats.Evolutions++

	eventType := EventEvolution
	if forced {
		eventType = EventForcedEvolution
	}
	slog.Info("lineage evolved",
		"user", lineage.UserID,
		"from", event.FromGeneration,
		"to", event.ToGeneration,
		"mutations", len(event.Mutations),
		"fitness", fitness)
	s.emit(ctx, eventType, lineage.UserID,
		fmt.Sprintf("gen=%d->%d mutations=%d fitness=%.2f->%.2f",
			event.FromGeneration, event.ToGeneration, len(event.Mutations),
			event.FitnessBefore, event.FitnessAfter))

	return event, nil
}

// Tick runs one daemon pass: updates fitness for every lineage and evolves
// those whose schedule has come due. Returns the number of lineages
// evolved. A random-source failure stops the pass and surfaces the error.
func (s *Service) Tick(ctx context.Context) (int, error) {
	s.mu.Lock()
	due := make([]string, 0)
	now := s.now()
	for userID, lineage := range s.lineages {
		s.updateFitnessLocked(lineage)
		if now.After(lineage.NextEvolution) || now.Equal(lineage.NextEvolution) {
			due = append(due, userID)
		}
	}
	s.mu.Unlock()

	evolved := 0
	for _, userID := range due {
		if _, err := s.Evolve(ctx, userID); err != nil {
			return evolved, err
		}
		evolved++
	}
	return evolved, nil
}

// Lineage returns a snapshot of a user's lineage.
func (s *Service) Lineage(userID string) (Lineage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lineage, ok := s.lineages[userID]
	if !ok {
		return Lineage{}, fault.New(fault.KindNotFound, "lineage", "no lineage for user %q", userID)
	}
	snap := *lineage
	snap.Generations = make([]*Generation, len(lineage.Generations))
	for i, g := range lineage.Generations {
		cp := *g
		snap.Generations[i] = &cp
	}
	if lineage.Current != nil {
		snap.Current = snap.Generations[len(snap.Generations)-1]
	}
	return snap, nil
}
