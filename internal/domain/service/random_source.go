package service

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// RandomSource draws uniform random values without the modulo bias that
// plain `% n` on a raw random word introduces.
type RandomSource interface {
	// Intn returns a uniform random integer in [0, n).
	Intn(n int) (int, error)
	// Shuffle permutes n elements in place via swap(i, j), Fisher-Yates.
	Shuffle(n int, swap func(i, j int))
}

type cryptoRandomSource struct{}

// NewRandomSource returns a RandomSource backed by crypto/rand.
func NewRandomSource() RandomSource { return cryptoRandomSource{} }

func (cryptoRandomSource) Intn(n int) (int, error) { return randIntn(n) }

func (cryptoRandomSource) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j, err := randIntn(i + 1)
		if err != nil {
			// crypto/rand failing is unrecoverable; leave the remaining
			// prefix unshuffled rather than panic on a random source error.
			return
		}
		swap(i, j)
	}
}

// randIntn returns a uniform random integer in [0, n) using rejection
// sampling over the smallest power of two at least as large as n, never
// taking a modulus of a raw random value.
func randIntn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("randIntn: n must be positive")
	}
	if n == 1 {
		return 0, nil
	}
	bitLen := 0
	for (1 << bitLen) < n {
		bitLen++
	}
	byteLen := (bitLen + 7) / 8
	mask := uint32(1<<bitLen) - 1
	for {
		var buf [4]byte
		if _, err := rand.Read(buf[:byteLen]); err != nil {
			return 0, err
		}
		v := binary.BigEndian.Uint32(buf[:]) >> (32 - byteLen*8)
		v &= mask
		if int(v) < n {
			return int(v), nil
		}
	}
}
