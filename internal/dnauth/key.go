package dnauth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/phantomos/phantom/internal/cryptorand"
	"github.com/phantomos/phantom/internal/dna"
	"github.com/phantomos/phantom/internal/fault"
)

// SaltLen is the salt size in bytes. The stored hash is 64 lowercase hex
// characters.
const SaltLen = 32

// KDF selects how a sequence is reduced to key material. Fixed for the
// lifetime of the credential.
type KDF int

const (
	// KDFBinary hashes the salt followed by the 2-bit packing.
	KDFBinary KDF = iota

	// KDFCodon hashes the salt followed by the protein translation, so
	// synonymous codon substitutions derive identical keys.
	KDFCodon
)

// String renders the fixed KDF name.
func (k KDF) String() string {
	switch k {
	case KDFBinary:
		return "Binary"
	case KDFCodon:
		return "Codon"
	}
	return "Unknown"
}

// ParseKDF resolves a KDF name.
func ParseKDF(name string) (KDF, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "binary":
		return KDFBinary, nil
	case "codon":
		return KDFCodon, nil
	}
	return 0, fault.New(fault.KindInvalidInput, "kdf", "unknown KDF %q", name)
}

// Mode selects how presented sequences are matched.
type Mode int

const (
	// ModeExact requires a hash-identical sequence.
	ModeExact Mode = iota

	// ModeFuzzy tolerates up to MaxMutations edits.
	ModeFuzzy

	// ModeCodonExact tolerates synonymous codon substitutions; requires
	// the codon KDF.
	ModeCodonExact

	// ModeProtein matches on translation equality; requires the codon KDF.
	ModeProtein
)

// String renders the fixed mode name.
func (m Mode) String() string {
	switch m {
	case ModeExact:
		return "Exact"
	case ModeFuzzy:
		return "Fuzzy"
	case ModeCodonExact:
		return "CodonExact"
	case ModeProtein:
		return "Protein"
	}
	return "Unknown"
}

// ParseMode resolves a mode name.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "exact":
		return ModeExact, nil
	case "fuzzy":
		return ModeFuzzy, nil
	case "codonexact", "codon-exact", "codon_exact":
		return ModeCodonExact, nil
	case "protein":
		return ModeProtein, nil
	}
	return 0, fault.New(fault.KindInvalidInput, "mode", "unknown auth mode %q", name)
}

// Key is one user's credential. Exactly one per user ID; revocation is a
// flag, never a removal.
type Key struct {
	UserID          string
	Salt            [SaltLen]byte
	Hash            string // 64 lowercase hex chars
	KDF             KDF
	Mode            Mode
	MaxMutations    int
	CreatedAt       time.Time
	ExpiresAt       time.Time // zero = never
	LastUsed        time.Time
	FailedAttempts  int
	LockoutUntil    time.Time
	LockoutEpisodes int
	Revoked         bool
	RevokeReason    string
	AuthCount       int
	PasswordVersion int

	// refSequence holds the normalized sequence for fuzzy matching. The
	// hash alone cannot support edit-distance comparison, so fuzzy-mode
	// keys keep the reference the same way lineage generations do.
	refSequence string
}

// deriveHash computes the stored credential hash:
// hex(SHA256(salt ∥ material)) where material is the 2-bit packing for the
// binary KDF or the protein translation for the codon KDF.
func deriveHash(salt []byte, seq dna.Sequence, kdf KDF) string {
	h := sha256.New()
	h.Write(salt)
	switch kdf {
	case KDFCodon:
		h.Write([]byte(seq.Translate()))
	default:
		h.Write(seq.Pack())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// newSalt fills a fresh salt from the random source. On failure the salt is
// zeroed and the error aborts the enclosing operation; there is no weak
// fallback.
func newSalt(src cryptorand.Source) ([SaltLen]byte, error) {
	var salt [SaltLen]byte
	if err := src.Fill(salt[:]); err != nil {
		salt = [SaltLen]byte{}
		return salt, err
	}
	return salt, nil
}
