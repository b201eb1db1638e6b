// Package shuffle randomizes the order of a filtered address sequence.
package shuffle

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"

	"ipsift/internal/domain"
)

// Source draws uniform integers in [0, n).
type Source interface {
	IntN(n int) int
}

// NewSource returns a PCG generator seeded from the operating system.
func NewSource() *rand.Rand {
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return NewSeeded(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:]))
}

// NewSeeded returns a deterministic generator.
func NewSeeded(seed1, seed2 uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed1, seed2))
}

// Shuffle permutes seq in place with Fisher-Yates.
func Shuffle(seq []domain.Address, src Source) {
	for i := len(seq) - 1; i > 0; i-- {
		j := src.IntN(i + 1)
		seq[i], seq[j] = seq[j], seq[i]
	}
}
