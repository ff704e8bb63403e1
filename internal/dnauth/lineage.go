package dnauth

import (
	"time"
)

// Lineage limits and evolution defaults.
const (
	MaxMutationsPerGen = 3
	MaxGenerations     = 100

	DefaultEvolutionInterval = 7 * 24 * time.Hour
	DefaultMutationRate      = 0.02
	DefaultAncestorPenalty   = 0.1
	DefaultMaxAncestorDepth  = 5
	FitnessDecay             = 0.05
)

// EvolutionType tags a mutation. Segment-level types (duplication,
// inversion, recombination) are preserved as tags but collapse to point
// substitutions when applied.
type EvolutionType int

const (
	EvoPoint EvolutionType = iota
	EvoTransition
	EvoTransversion
	EvoInsertion
	EvoDeletion
	EvoDuplication
	EvoInversion
	EvoRecombination
)

// String renders the fixed mutation type name.
func (t EvolutionType) String() string {
	switch t {
	case EvoPoint:
		return "Point Mutation"
	case EvoTransition:
		return "Transition"
	case EvoTransversion:
		return "Transversion"
	case EvoInsertion:
		return "Insertion"
	case EvoDeletion:
		return "Deletion"
	case EvoDuplication:
		return "Duplication"
	case EvoInversion:
		return "Inversion"
	case EvoRecombination:
		return "Recombination"
	}
	return "Unknown"
}

// Pressure selects how fitness drifts between evolutions.
type Pressure int

const (
	PressureNone Pressure = iota
	PressureTime
	PressureUsage
	PressureEnvironmental
	PressureAdaptive
)

// String renders the fixed pressure name.
func (p Pressure) String() string {
	switch p {
	case PressureNone:
		return "None"
	case PressureTime:
		return "Time"
	case PressureUsage:
		return "Usage"
	case PressureEnvironmental:
		return "Environmental"
	case PressureAdaptive:
		return "Adaptive"
	}
	return "Unknown"
}

// Mutation is one applied edit in a generation step.
type Mutation struct {
	Type          EvolutionType
	Position      int
	Original      byte // '-' for insertions
	Mutated       byte // '-' for deletions
	Timestamp     time.Time
	FitnessImpact float64
}

// Generation is one node in a lineage. The parent chain is rooted at
// generation 1 with ParentID 0.
type Generation struct {
	ID           int
	ParentID     int
	CreatedAt    time.Time
	EvolvedAt    time.Time // set when superseded
	Sequence     string
	SequenceHash string
	Salt         [SaltLen]byte
	Mutations    []Mutation
	Fitness      float64
	AuthCount    int
	FailedCount  int
	Active       bool
	Extinct      bool
}

// Lineage is the evolutionary history of one credential.
type Lineage struct {
	UserID            string
	Generations       []*Generation // append order; index 0 is generation 1
	Current           *Generation
	TotalGenerations  int
	TotalMutations    int
	TotalAuths        int
	Pressure          Pressure
	MutationRate      float64
	EvolutionInterval time.Duration
	NextEvolution     time.Time
	AllowAncestorAuth bool
	MaxAncestorDepth  int
	AncestorPenalty   float64
	CumulativeFitness float64
}

// generation returns the generation with the given ID, or nil.
func (l *Lineage) generation(id int) *Generation {
	for _, g := range l.Generations {
		if g.ID == id {
			return g
		}
	}
	return nil
}

// Ancestor walks back the parent chain from the current generation. Zero
// steps returns the current generation; the walk stops at the origin.
func (l *Lineage) Ancestor(back int) *Generation {
	gen := l.Current
	for steps := 0; gen != nil && steps < back; steps++ {
		if gen.ParentID == 0 {
			return gen
		}
		parent := l.generation(gen.ParentID)
		if parent == nil {
			return gen
		}
		gen = parent
	}
	return gen
}

// EvolutionEvent records one generation step.
type EvolutionEvent struct {
	ID             string // uuid
	UserID         string
	FromGeneration int
	ToGeneration   int
	Mutations      []Mutation
	FitnessBefore  float64
	FitnessAfter   float64
	Forced         bool
	Timestamp      time.Time
}
