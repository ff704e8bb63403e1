package dna

// The standard genetic code: DNA triplet to single-letter amino acid code,
// with '*' for the three stop codons. This table is normative ABI.
var geneticCode = map[string]byte{
	"TTT": 'F', "TTC": 'F', "TTA": 'L', "TTG": 'L',
	"CTT": 'L', "CTC": 'L', "CTA": 'L', "CTG": 'L',
	"ATT": 'I', "ATC": 'I', "ATA": 'I', "ATG": 'M',
	"GTT": 'V', "GTC": 'V', "GTA": 'V', "GTG": 'V',
	"TCT": 'S', "TCC": 'S', "TCA": 'S', "TCG": 'S',
	"CCT": 'P', "CCC": 'P', "CCA": 'P', "CCG": 'P',
	"ACT": 'T', "ACC": 'T', "ACA": 'T', "ACG": 'T',
	"GCT": 'A', "GCC": 'A', "GCA": 'A', "GCG": 'A',
	"TAT": 'Y', "TAC": 'Y', "TAA": '*', "TAG": '*',
	"CAT": 'H', "CAC": 'H', "CAA": 'Q', "CAG": 'Q',
	"AAT": 'N', "AAC": 'N', "AAA": 'K', "AAG": 'K',
	"GAT": 'D', "GAC": 'D', "GAA": 'E', "GAG": 'E',
	"TGT": 'C', "TGC": 'C', "TGA": '*', "TGG": 'W',
	"CGT": 'R', "CGC": 'R', "CGA": 'R', "CGG": 'R',
	"AGT": 'S', "AGC": 'S', "AGA": 'R', "AGG": 'R',
	"GGT": 'G', "GGC": 'G', "GGA": 'G', "GGG": 'G',
}

// codonTable is the same code indexed by the 6-bit codon value
// (bits(c0)<<4 | bits(c1)<<2 | bits(c2)), built once at init.
var codonTable [64]byte

func init() {
	for codon, aa := range geneticCode {
		b0, _ := bits(codon[0])
		b1, _ := bits(codon[1])
		b2, _ := bits(codon[2])
		codonTable[b0<<4|b1<<2|b2] = aa
	}
}

// CodonIndex returns the 6-bit index of a codon starting at offset i.
// The caller guarantees i+2 is in range.
func (s Sequence) CodonIndex(i int) int {
	b0, _ := bits(s.Nucleotides[i])
	b1, _ := bits(s.Nucleotides[i+1])
	b2, _ := bits(s.Nucleotides[i+2])
	return int(b0)<<4 | int(b1)<<2 | int(b2)
}

// Translate renders the sequence as a protein string through the standard
// genetic code. A trailing partial codon is ignored; stop codons appear as
// '*' and do not terminate translation.
func (s Sequence) Translate() string {
	nts := s.Nucleotides
	out := make([]byte, 0, len(nts)/3)
	for i := 0; i+2 < len(nts); i += 3 {
		out = append(out, codonTable[s.CodonIndex(i)])
	}
	return string(out)
}
