package dna

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phantomos/phantom/internal/fault"
)

func TestValidate_NormalizesWhitespaceAndCase(t *testing.T) {
	seq, err := Validate(" atg c\tATG C\natgc ")
	require.NoError(t, err)
	assert.Equal(t, "ATGCATGCATGC", seq.Nucleotides)
	assert.Equal(t, 3, seq.CountA)
	assert.Equal(t, 3, seq.CountT)
	assert.Equal(t, 3, seq.CountG)
	assert.Equal(t, 3, seq.CountC)
}

func TestValidate_RejectsInvalidNucleotide(t *testing.T) {
	_, err := Validate("ATGCATGCATGX")
	require.Error(t, err)
	assert.True(t, fault.IsInvalidInput(err))
}

func TestValidate_LengthBounds(t *testing.T) {
	// 11 is one below the minimum, 4097 one above the maximum.
	_, err := Validate(strings.Repeat("ATGC", 2) + "ATG")
	require.Error(t, err, "length 11 must be rejected")

	seq, err := Validate(strings.Repeat("ATGC", 3))
	require.NoError(t, err, "length 12 must be accepted")
	assert.Equal(t, MinLen, seq.Len())

	seq, err = Validate(strings.Repeat("ATGC", 1024))
	require.NoError(t, err, "length 4096 must be accepted")
	assert.Equal(t, MaxLen, seq.Len())

	_, err = Validate(strings.Repeat("ATGC", 1024) + "A")
	require.Error(t, err, "length 4097 must be rejected")
	assert.True(t, fault.IsInvalidInput(err))
}

func TestEntropy_UniformDistributionIsMaximal(t *testing.T) {
	seq, err := Validate("ATGCATGCATGC")
	require.NoError(t, err)
	assert.InDelta(t, 2.0, seq.Entropy(), 1e-9)
}

func TestEntropy_SingleNucleotideIsZero(t *testing.T) {
	seq, err := Validate("AAAAAAAAAAAA")
	require.NoError(t, err)
	assert.InDelta(t, 0.0, seq.Entropy(), 1e-9)
}

func TestGCContent(t *testing.T) {
	seq, err := Validate("GGCCGGCCAATT")
	require.NoError(t, err)
	assert.InDelta(t, 8.0/12.0, seq.GCContent(), 1e-9)
}

func TestHasLongRepeats(t *testing.T) {
	mono, err := Validate("ATGCAAAAAAGC")
	require.NoError(t, err)
	assert.True(t, mono.HasLongRepeats(6), "six-A run is a long repeat")

	di, err := Validate("ATATATATATAT")
	require.NoError(t, err)
	assert.True(t, di.HasLongRepeats(6), "AT repeated is a long repeat")

	clean, err := Validate("ATGCATGCATGC")
	require.NoError(t, err)
	assert.False(t, clean.HasLongRepeats(6))
}

func TestComplexity_Classification(t *testing.T) {
	cases := []struct {
		raw  string
		want Complexity
	}{
		{"AAAAAAAAAAAA", ComplexityLow},     // zero entropy
		{"ATATATATATAT", ComplexityLow},     // long dinucleotide repeat
		{"ATGATGATGATG", ComplexityMedium},  // three nucleotides, no C
		{"ATGCATGCATGC", ComplexityGenomic}, // uniform over all four
	}
	for _, tc := range cases {
		seq, err := Validate(tc.raw)
		require.NoError(t, err, tc.raw)
		assert.Equal(t, tc.want, seq.Complexity(), "sequence %s", tc.raw)
	}
}

func TestParseComplexity(t *testing.T) {
	c, err := ParseComplexity("genomic")
	require.NoError(t, err)
	assert.Equal(t, ComplexityGenomic, c)

	_, err = ParseComplexity("extreme")
	assert.Error(t, err)
}

func TestAnalyze_WarnsOnLowComplexity(t *testing.T) {
	seq, err := Validate("AAAAAAAAAAAA")
	require.NoError(t, err)
	a := Analyze(seq)
	assert.Equal(t, ComplexityLow, a.Complexity)
	assert.NotEmpty(t, a.Warnings)
}
