// Package cryptorand is the single random source for the control plane.
//
// Every salt, nonce, DNS query ID, and mutation draw comes through this
// package. There is deliberately no fallback: if the OS source fails, the
// caller's operation fails. Seeding from time, addresses, or PIDs is
// forbidden.
package cryptorand

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/phantomos/phantom/internal/fault"
)

// Source produces cryptographic random bytes. The package-level functions
// use the OS source; tests may substitute a deterministic Source.
type Source interface {
	// Fill fills buf with random bytes or returns an error. On error the
	// buffer contents are unspecified and must not be used.
	Fill(buf []byte) error
}

// OS is the operating-system CSPRNG.
var OS Source = osSource{}

type osSource struct{}

func (osSource) Fill(buf []byte) error {
	if _, err := rand.Read(buf); err != nil {
		return fault.Wrap(err, fault.KindRandomness, "os_source", "cryptographic random source unavailable")
	}
	return nil
}

// Fill fills buf from src.
func Fill(src Source, buf []byte) error {
	return src.Fill(buf)
}

// Uint16 returns a uniform 16-bit value.
func Uint16(src Source) (uint16, error) {
	var b [2]byte
	if err := src.Fill(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

// Uint64 returns a uniform 64-bit value.
func Uint64(src Source) (uint64, error) {
	var b [8]byte
	if err := src.Fill(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// IntN returns a uniform value in [0, n). Uses rejection sampling so the
// distribution is exact, not merely close.
func IntN(src Source, n int) (int, error) {
	if n <= 0 {
		return 0, fault.New(fault.KindInvalidInput, "intn_bound", "IntN bound must be positive, got %d", n)
	}
	bound := uint64(n)
	// Largest multiple of bound that fits in 64 bits.
	limit := ^uint64(0) - (^uint64(0) % bound)
	for {
		v, err := Uint64(src)
		if err != nil {
			return 0, err
		}
		if v < limit {
			return int(v % bound), nil
		}
	}
}

// Bernoulli returns true with probability p.
func Bernoulli(src Source, p float64) (bool, error) {
	if p <= 0 {
		return false, nil
	}
	if p >= 1 {
		return true, nil
	}
	v, err := Uint64(src)
	if err != nil {
		return false, err
	}
	// 53 bits of precision matches float64's mantissa.
	f := float64(v>>11) / float64(1<<53)
	return f < p, nil
}
