package dna

import "github.com/phantomos/phantom/internal/cryptorand"

// Complement returns the Watson-Crick complement: A↔T, G↔C.
func Complement(nts string) string {
	out := make([]byte, len(nts))
	for i := 0; i < len(nts); i++ {
		switch nts[i] {
		case 'A':
			out[i] = 'T'
		case 'T':
			out[i] = 'A'
		case 'G':
			out[i] = 'C'
		case 'C':
			out[i] = 'G'
		default:
			out[i] = nts[i]
		}
	}
	return string(out)
}

// ReverseComplement returns the complement read 3'→5'.
func ReverseComplement(nts string) string {
	comp := []byte(Complement(nts))
	for i, j := 0, len(comp)-1; i < j; i, j = i+1, j-1 {
		comp[i], comp[j] = comp[j], comp[i]
	}
	return string(comp)
}

// Transcribe returns the RNA rendering (T→U).
func Transcribe(nts string) string {
	out := make([]byte, len(nts))
	for i := 0; i < len(nts); i++ {
		if nts[i] == 'T' {
			out[i] = 'U'
		} else {
			out[i] = nts[i]
		}
	}
	return string(out)
}

// Random generates a uniformly random sequence of n nucleotides from the
// cryptographic source. A source failure fails the call.
func Random(src cryptorand.Source, n int) (Sequence, error) {
	const alphabet = "ATGC"
	buf := make([]byte, n)
	for i := range buf {
		k, err := cryptorand.IntN(src, 4)
		if err != nil {
			return Sequence{}, err
		}
		buf[i] = alphabet[k]
	}
	return Validate(string(buf))
}
