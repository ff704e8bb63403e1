package dna

import "github.com/phantomos/phantom/internal/fault"

// 2-bit nucleotide encoding: A=00, T=01, G=10, C=11. Four nucleotides per
// byte, first nucleotide in the high bits.

func bits(nt byte) (byte, bool) {
	switch nt {
	case 'A':
		return 0b00, true
	case 'T':
		return 0b01, true
	case 'G':
		return 0b10, true
	case 'C':
		return 0b11, true
	}
	return 0, false
}

func nucleotide(b byte) byte {
	switch b & 0b11 {
	case 0b00:
		return 'A'
	case 0b01:
		return 'T'
	case 0b10:
		return 'G'
	default:
		return 'C'
	}
}

// Pack encodes the sequence at 2 bits per nucleotide. The trailing byte is
// zero-padded in its low bits.
func (s Sequence) Pack() []byte {
	nts := s.Nucleotides
	packed := make([]byte, (len(nts)+3)/4)
	for i := 0; i < len(nts); i++ {
		b, _ := bits(nts[i])
		shift := uint((3 - i%4) * 2)
		packed[i/4] |= b << shift
	}
	return packed
}

// Unpack decodes n nucleotides from a 2-bit packing. Round-trips Pack
// exactly.
func Unpack(packed []byte, n int) (string, error) {
	if n < 0 || (n+3)/4 > len(packed) {
		return "", fault.New(fault.KindInvalidInput, "unpack",
			"packing of %d bytes cannot hold %d nucleotides", len(packed), n)
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		shift := uint((3 - i%4) * 2)
		out[i] = nucleotide(packed[i/4] >> shift)
	}
	return string(out), nil
}
