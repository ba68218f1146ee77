package fingerprint

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrDimensionMismatch is returned when an embedding does not have the
// dimension a Binarizer was built for.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Binarizer hashes float embeddings into fingerprints with random
// hyperplanes: bit i is set when the embedding lies on the non-negative side
// of plane i. Nearby embeddings (by angle) land on nearby fingerprints (by
// Hamming distance).
//
// Planes are drawn from a PCG generator seeded with seed, so two Binarizers
// with the same dims, bits and seed produce identical fingerprints. Cached
// hash keys stay valid only while all three match.
type Binarizer struct {
	dims   int
	bits   int
	seed   uint64
	planes []float32 // bits rows of dims values
}

// NewBinarizer creates a Binarizer projecting dims-dimensional embeddings
// onto bits hyperplanes.
func NewBinarizer(dims, bits int, seed uint64) (*Binarizer, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("invalid embedding dimension: %d", dims)
	}
	if bits <= 0 {
		return nil, fmt.Errorf("%w: %d bits", ErrInvalidLength, bits)
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	planes := make([]float32, dims*bits)
	for i := range planes {
		planes[i] = float32(rng.NormFloat64())
	}

	return &Binarizer{
		dims:   dims,
		bits:   bits,
		seed:   seed,
		planes: planes,
	}, nil
}

// Fingerprint hashes vec into a Bits()-wide fingerprint.
func (b *Binarizer) Fingerprint(vec []float32) (Fingerprint, error) {
	if len(vec) != b.dims {
		return Fingerprint{}, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, b.dims, len(vec))
	}

	key := make([]byte, ByteLen(b.bits))
	for i := 0; i < b.bits; i++ {
		plane := b.planes[i*b.dims : (i+1)*b.dims]
		var dot float32
		for j, v := range vec {
			dot += plane[j] * v
		}
		if dot >= 0 {
			key[i/8] |= 0x80 >> (i % 8)
		}
	}

	return Fingerprint{bits: b.bits, key: key}, nil
}

// Dims returns the expected embedding dimension.
func (b *Binarizer) Dims() int {
	return b.dims
}

// Bits returns the fingerprint width.
func (b *Binarizer) Bits() int {
	return b.bits
}

// Seed returns the plane seed.
func (b *Binarizer) Seed() uint64 {
	return b.seed
}
