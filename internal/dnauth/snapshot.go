package dnauth

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/phantomos/phantom/internal/fault"
)

// Wire forms for snapshotting. Salts travel as hex; lineage generation
// links travel as IDs and are re-pointered on restore.

type keyState struct {
	UserID          string    `json:"user_id"`
	Salt            string    `json:"salt"`
	Hash            string    `json:"hash"`
	KDF             KDF       `json:"kdf"`
	Mode            Mode      `json:"mode"`
	MaxMutations    int       `json:"max_mutations"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at,omitzero"`
	LastUsed        time.Time `json:"last_used,omitzero"`
	FailedAttempts  int       `json:"failed_attempts"`
	LockoutUntil    time.Time `json:"lockout_until,omitzero"`
	LockoutEpisodes int       `json:"lockout_episodes"`
	Revoked         bool      `json:"revoked"`
	RevokeReason    string    `json:"revoke_reason,omitempty"`
	AuthCount       int       `json:"auth_count"`
	PasswordVersion int       `json:"password_version"`
	RefSequence     string    `json:"ref_sequence,omitempty"`
}

type generationState struct {
	ID           int        `json:"id"`
	ParentID     int        `json:"parent_id"`
	CreatedAt    time.Time  `json:"created_at"`
	EvolvedAt    time.Time  `json:"evolved_at,omitzero"`
	Sequence     string     `json:"sequence"`
	SequenceHash string     `json:"sequence_hash"`
	Salt         string     `json:"salt"`
	Mutations    []Mutation `json:"mutations,omitempty"`
	Fitness      float64    `json:"fitness"`
	AuthCount    int        `json:"auth_count"`
	FailedCount  int        `json:"failed_count"`
	Active       bool       `json:"active"`
	Extinct      bool       `json:"extinct"`
}

type lineageState struct {
	UserID            string            `json:"user_id"`
	Generations       []generationState `json:"generations"`
	CurrentID         int               `json:"current_id"`
	TotalGenerations  int               `json:"total_generations"`
	TotalMutations    int               `json:"total_mutations"`
	TotalAuths        int               `json:"total_auths"`
	Pressure          Pressure          `json:"pressure"`
	MutationRate      float64           `json:"mutation_rate"`
	EvolutionInterval time.Duration     `json:"evolution_interval"`
	NextEvolution     time.Time         `json:"next_evolution"`
	AllowAncestorAuth bool              `json:"allow_ancestor_auth"`
	MaxAncestorDepth  int               `json:"max_ancestor_depth"`
	AncestorPenalty   float64           `json:"ancestor_penalty"`
	CumulativeFitness float64           `json:"cumulative_fitness"`
}

type serviceState struct {
	Keys     []keyState     `json:"keys"`
	Lineages []lineageState `json:"lineages"`
	Attempts []Attempt      `json:"attempts,omitempty"`
	NextID   int            `json:"next_id"`
	Stats    Stats          `json:"stats"`
}

// Snapshot serializes all keys, lineages, the attempt log, and counters.
// The result contains credential hashes and reference sequences; callers
// owe it the same protection as the live service state.
func (s *Service) Snapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := serviceState{
		Attempts: s.attempts,
		NextID:   s.nextID,
		Stats:    s.stats,
	}
	for _, key := range s.keys {
		state.Keys = append(state.Keys, keyState{
			UserID:          key.UserID,
			Salt:            hex.EncodeToString(key.Salt[:]),
			Hash:            key.Hash,
			KDF:             key.KDF,
			Mode:            key.Mode,
			MaxMutations:    key.MaxMutations,
			CreatedAt:       key.CreatedAt,
			ExpiresAt:       key.ExpiresAt,
			LastUsed:        key.LastUsed,
			FailedAttempts:  key.FailedAttempts,
			LockoutUntil:    key.LockoutUntil,
			LockoutEpisodes: key.LockoutEpisodes,
			Revoked:         key.Revoked,
			RevokeReason:    key.RevokeReason,
			AuthCount:       key.AuthCount,
			PasswordVersion: key.PasswordVersion,
			RefSequence:     key.refSequence,
		})
	}
	for _, lin := range s.lineages {
		if lin.Current == nil {
			return nil, fault.New(fault.KindCorruptState, "snapshot",
				"lineage for %q has no current generation", lin.UserID)
		}
		ls := lineageState{
			UserID:            lin.UserID,
			CurrentID:         lin.Current.ID,
			TotalGenerations:  lin.TotalGenerations,
			TotalMutations:    lin.TotalMutations,
			TotalAuths:        lin.TotalAuths,
			Pressure:          lin.Pressure,
			MutationRate:      lin.MutationRate,
			EvolutionInterval: lin.EvolutionInterval,
			NextEvolution:     lin.NextEvolution,
			AllowAncestorAuth: lin.AllowAncestorAuth,
			MaxAncestorDepth:  lin.MaxAncestorDepth,
			AncestorPenalty:   lin.AncestorPenalty,
			CumulativeFitness: lin.CumulativeFitness,
		}
		for _, g := range lin.Generations {
			ls.Generations = append(ls.Generations, generationState{
				ID:           g.ID,
				ParentID:     g.ParentID,
				CreatedAt:    g.CreatedAt,
				EvolvedAt:    g.EvolvedAt,
				Sequence:     g.Sequence,
				SequenceHash: g.SequenceHash,
				Salt:         hex.EncodeToString(g.Salt[:]),
				Mutations:    g.Mutations,
				Fitness:      g.Fitness,
				AuthCount:    g.AuthCount,
				FailedCount:  g.FailedCount,
				Active:       g.Active,
				Extinct:      g.Extinct,
			})
		}
		state.Lineages = append(state.Lineages, ls)
	}
	return json.Marshal(state)
}

// Restore replaces the service state with a snapshot.
func (s *Service) Restore(data []byte) error {
	var state serviceState
	if err := json.Unmarshal(data, &state); err != nil {
		return fault.Wrap(err, fault.KindCorruptState, "snapshot",
			"cannot decode credential snapshot")
	}

	keys := make(map[string]*Key, len(state.Keys))
	for _, ks := range state.Keys {
		salt, err := decodeSalt(ks.Salt)
		if err != nil {
			return err
		}
		keys[ks.UserID] = &Key{
			UserID:          ks.UserID,
			Salt:            salt,
			Hash:            ks.Hash,
			KDF:             ks.KDF,
			Mode:            ks.Mode,
			MaxMutations:    ks.MaxMutations,
			CreatedAt:       ks.CreatedAt,
			ExpiresAt:       ks.ExpiresAt,
			LastUsed:        ks.LastUsed,
			FailedAttempts:  ks.FailedAttempts,
			LockoutUntil:    ks.LockoutUntil,
			LockoutEpisodes: ks.LockoutEpisodes,
			Revoked:         ks.Revoked,
			RevokeReason:    ks.RevokeReason,
			AuthCount:       ks.AuthCount,
			PasswordVersion: ks.PasswordVersion,
			refSequence:     ks.RefSequence,
		}
	}

	lineages := make(map[string]*Lineage, len(state.Lineages))
	for _, ls := range state.Lineages {
		lin := &Lineage{
			UserID:            ls.UserID,
			TotalGenerations:  ls.TotalGenerations,
			TotalMutations:    ls.TotalMutations,
			TotalAuths:        ls.TotalAuths,
			Pressure:          ls.Pressure,
			MutationRate:      ls.MutationRate,
			EvolutionInterval: ls.EvolutionInterval,
			NextEvolution:     ls.NextEvolution,
			AllowAncestorAuth: ls.AllowAncestorAuth,
			MaxAncestorDepth:  ls.MaxAncestorDepth,
			AncestorPenalty:   ls.AncestorPenalty,
			CumulativeFitness: ls.CumulativeFitness,
		}
		for _, gs := range ls.Generations {
			salt, err := decodeSalt(gs.Salt)
			if err != nil {
				return err
			}
			lin.Generations = append(lin.Generations, &Generation{
				ID:           gs.ID,
				ParentID:     gs.ParentID,
				CreatedAt:    gs.CreatedAt,
				EvolvedAt:    gs.EvolvedAt,
				Sequence:     gs.Sequence,
				SequenceHash: gs.SequenceHash,
				Salt:         salt,
				Mutations:    gs.Mutations,
				Fitness:      gs.Fitness,
				AuthCount:    gs.AuthCount,
				FailedCount:  gs.FailedCount,
				Active:       gs.Active,
				Extinct:      gs.Extinct,
			})
		}
		lin.Current = lin.generation(ls.CurrentID)
		if lin.Current == nil {
			return fault.New(fault.KindCorruptState, "snapshot",
				"lineage for %q names missing current generation %d", ls.UserID, ls.CurrentID)
		}
		lineages[ls.UserID] = lin
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = keys
	s.lineages = lineages
	s.attempts = state.Attempts
	s.nextID = state.NextID
	s.stats = state.Stats
	return nil
}

func decodeSalt(h string) ([SaltLen]byte, error) {
	var salt [SaltLen]byte
	raw, err := hex.DecodeString(h)
	if err != nil || len(raw) != SaltLen {
		return salt, fault.New(fault.KindCorruptState, "snapshot", "malformed salt in snapshot")
	}
	copy(salt[:], raw)
	return salt, nil
}
