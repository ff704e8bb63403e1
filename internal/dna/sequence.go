// Package dna implements validated nucleotide sequences: normalization,
// 2-bit packing, composition analysis, complexity classification, and
// translation through the standard genetic code.
package dna

import (
	"math"
	"strings"

	"github.com/phantomos/phantom/internal/fault"
)

// Sequence length bounds. Inclusive on both ends.
const (
	MinLen = 12
	MaxLen = 4096
)

// Complexity is the coarse classification of a sequence's information
// content. Ordered: Low < Medium < High < Genomic.
type Complexity int

const (
	ComplexityLow Complexity = iota
	ComplexityMedium
	ComplexityHigh
	ComplexityGenomic
)

// String renders the fixed complexity name.
func (c Complexity) String() string {
	switch c {
	case ComplexityLow:
		return "Low"
	case ComplexityMedium:
		return "Medium"
	case ComplexityHigh:
		return "High"
	case ComplexityGenomic:
		return "Genomic"
	}
	return "Unknown"
}

// ParseComplexity resolves a complexity name.
func ParseComplexity(name string) (Complexity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "low":
		return ComplexityLow, nil
	case "medium":
		return ComplexityMedium, nil
	case "high":
		return ComplexityHigh, nil
	case "genomic":
		return ComplexityGenomic, nil
	}
	return 0, fault.New(fault.KindInvalidInput, "complexity", "unknown complexity %q", name)
}

// Sequence is a validated, normalized nucleotide string: uppercase,
// whitespace-stripped, alphabet {A,T,G,C}, length within bounds.
type Sequence struct {
	Nucleotides string
	CountA      int
	CountT      int
	CountG      int
	CountC      int
}

// Validate normalizes and checks a raw sequence string. Whitespace is
// stripped, letters uppercased; any other character, or a length outside
// [12, 4096], rejects the input.
func Validate(raw string) (Sequence, error) {
	var b strings.Builder
	b.Grow(len(raw))
	var seq Sequence
	for _, r := range raw {
		switch r {
		case ' ', '\t', '\n', '\r':
			continue
		case 'a', 'A':
			seq.CountA++
			b.WriteByte('A')
		case 't', 'T':
			seq.CountT++
			b.WriteByte('T')
		case 'g', 'G':
			seq.CountG++
			b.WriteByte('G')
		case 'c', 'C':
			seq.CountC++
			b.WriteByte('C')
		default:
			return Sequence{}, fault.New(fault.KindInvalidInput, "nucleotide",
				"invalid nucleotide %q: sequence must contain only A, T, G, C", r)
		}
	}
	seq.Nucleotides = b.String()
	n := len(seq.Nucleotides)
	if n < MinLen {
		return Sequence{}, fault.New(fault.KindInvalidInput, "too_short",
			"sequence length %d below minimum %d", n, MinLen)
	}
	if n > MaxLen {
		return Sequence{}, fault.New(fault.KindInvalidInput, "too_long",
			"sequence length %d above maximum %d", n, MaxLen)
	}
	return seq, nil
}

// Len returns the nucleotide count.
func (s Sequence) Len() int { return len(s.Nucleotides) }

// GCContent returns the G+C fraction in [0, 1].
func (s Sequence) GCContent() float64 {
	n := s.Len()
	if n == 0 {
		return 0
	}
	return float64(s.CountG+s.CountC) / float64(n)
}

// Entropy returns the Shannon entropy of the nucleotide distribution in
// bits. Maximum for four symbols is 2.0.
func (s Sequence) Entropy() float64 {
	n := s.Len()
	if n == 0 {
		return 0
	}
	entropy := 0.0
	for _, count := range [4]int{s.CountA, s.CountT, s.CountG, s.CountC} {
		if count == 0 {
			continue
		}
		p := float64(count) / float64(n)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// HasLongRepeats reports whether the sequence contains a mononucleotide run
// or a dinucleotide repeat of at least minRepeat nucleotides.
func (s Sequence) HasLongRepeats(minRepeat int) bool {
	nts := s.Nucleotides
	if len(nts) < minRepeat {
		return false
	}

	maxRepeat := 0
	current := 1
	for i := 1; i < len(nts); i++ {
		if nts[i] == nts[i-1] {
			current++
			if current > maxRepeat {
				maxRepeat = current
			}
		} else {
			current = 1
		}
	}

	if len(nts) >= 4 {
		current = 1
		for i := 2; i < len(nts)-1; i += 2 {
			if nts[i] == nts[i-2] && nts[i+1] == nts[i-1] {
				current++
				if current*2 > maxRepeat {
					maxRepeat = current * 2
				}
			} else {
				current = 1
			}
		}
	}

	return maxRepeat >= minRepeat
}

// Complexity classifies the sequence from entropy, nucleotide coverage, and
// repeat structure.
func (s Sequence) Complexity() Complexity {
	entropy := s.Entropy()
	hasAll := s.CountA > 0 && s.CountT > 0 && s.CountG > 0 && s.CountC > 0

	switch {
	case entropy < 1.0 || s.HasLongRepeats(6):
		return ComplexityLow
	case entropy < 1.5 || !hasAll:
		return ComplexityMedium
	case entropy < 1.9:
		return ComplexityHigh
	default:
		return ComplexityGenomic
	}
}

// Analysis bundles the derived metrics for operator display.
type Analysis struct {
	Length     int
	CountA     int
	CountT     int
	CountG     int
	CountC     int
	GCContent  float64
	Entropy    float64
	Complexity Complexity
	HasRepeats bool
	Warnings   []string
}

// Analyze computes the full metric bundle for a sequence.
func Analyze(s Sequence) Analysis {
	a := Analysis{
		Length:     s.Len(),
		CountA:     s.CountA,
		CountT:     s.CountT,
		CountG:     s.CountG,
		CountC:     s.CountC,
		GCContent:  s.GCContent(),
		Entropy:    s.Entropy(),
		Complexity: s.Complexity(),
		HasRepeats: s.HasLongRepeats(6),
	}
	if a.Complexity == ComplexityLow {
		a.Warnings = append(a.Warnings, "Low complexity sequence.")
	}
	if a.HasRepeats {
		a.Warnings = append(a.Warnings, "Contains long repeats.")
	}
	if a.Entropy < 1.5 {
		a.Warnings = append(a.Warnings, "Low entropy.")
	}
	return a
}
