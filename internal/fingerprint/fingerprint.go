// Package fingerprint holds fixed-width binary hash keys and the Hamming
// distance kernels used to compare them.
//
// A Fingerprint of N bits is stored packed into ceil(N/8) bytes,
// most-significant bit first inside each byte. Bit 0 is the high bit of the
// first byte. Any padding bits past N in the last byte are always zero.
package fingerprint

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidLength is returned when a key does not hold ceil(bits/8) bytes.
	ErrInvalidLength = errors.New("invalid fingerprint length")

	// ErrWidthMismatch is returned when two fingerprints of different bit
	// widths are compared.
	ErrWidthMismatch = errors.New("fingerprint width mismatch")
)

// Fingerprint is an immutable N-bit binary vector.
// The zero value means "no fingerprint".
type Fingerprint struct {
	bits int
	key  []byte
}

// ByteLen returns the number of bytes needed to pack n bits.
func ByteLen(n int) int {
	return (n + 7) / 8
}

// New builds a fingerprint of the given bit width from packed bytes.
// The key is copied; padding bits in the last byte are cleared.
func New(key []byte, bits int) (Fingerprint, error) {
	if bits <= 0 {
		return Fingerprint{}, fmt.Errorf("%w: %d bits", ErrInvalidLength, bits)
	}
	if len(key) != ByteLen(bits) {
		return Fingerprint{}, fmt.Errorf("%w: %d bytes for %d bits", ErrInvalidLength, len(key), bits)
	}

	k := bytes.Clone(key)
	if rem := bits % 8; rem != 0 {
		k[len(k)-1] &= 0xFF << (8 - rem)
	}

	return Fingerprint{bits: bits, key: k}, nil
}

// FromBytes treats every byte of key as 8 fingerprint bits.
func FromBytes(key []byte) Fingerprint {
	if len(key) == 0 {
		return Fingerprint{}
	}
	return Fingerprint{bits: len(key) * 8, key: bytes.Clone(key)}
}

// ParseHex parses the hex form produced by String. An optional "0x" prefix
// is accepted.
func ParseHex(s string) (Fingerprint, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return Fingerprint{}, fmt.Errorf("%w: empty hex string", ErrInvalidLength)
	}

	key, err := hex.DecodeString(s)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("failed to decode fingerprint: %w", err)
	}

	return FromBytes(key), nil
}

// Bits returns the fingerprint width N.
func (f Fingerprint) Bits() int {
	return f.bits
}

// Bytes returns a copy of the packed key.
func (f Fingerprint) Bytes() []byte {
	return bytes.Clone(f.key)
}

// IsZero reports whether f carries no fingerprint.
func (f Fingerprint) IsZero() bool {
	return f.bits == 0
}

// Bit reports whether bit i is set. It panics if i is out of range.
func (f Fingerprint) Bit(i int) bool {
	if i < 0 || i >= f.bits {
		panic(fmt.Sprintf("fingerprint: bit %d out of range [0,%d)", i, f.bits))
	}
	return f.key[i/8]&(0x80>>(i%8)) != 0
}

// Equal reports whether both fingerprints have the same width and bits.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.bits == other.bits && bytes.Equal(f.key, other.key)
}

// String returns the lowercase hex encoding of the packed key.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f.key)
}
