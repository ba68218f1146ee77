package fingerprint

import (
	"fmt"
	"math/bits"
)

// Pack packs bits MSB-first into ceil(len(bits)/8) bytes.
func Pack(b []bool) Fingerprint {
	if len(b) == 0 {
		return Fingerprint{}
	}

	key := make([]byte, ByteLen(len(b)))
	for i, set := range b {
		if set {
			key[i/8] |= 0x80 >> (i % 8)
		}
	}

	return Fingerprint{bits: len(b), key: key}
}

// Unpack expands f into its N bits.
func Unpack(f Fingerprint) []bool {
	out := make([]bool, f.bits)
	for i := range out {
		out[i] = f.key[i/8]&(0x80>>(i%8)) != 0
	}
	return out
}

// Distance returns the number of differing bits between a and b.
func Distance(a, b Fingerprint) (int, error) {
	if a.bits != b.bits {
		return 0, fmt.Errorf("%w: %d vs %d bits", ErrWidthMismatch, a.bits, b.bits)
	}

	var d int
	for i := range a.key {
		d += bits.OnesCount8(a.key[i] ^ b.key[i])
	}
	return d, nil
}

// Hamming counts, for every candidate row, the positions where it differs
// from query. Rows are compared position by position; a position missing
// from the shorter side counts as unset.
//
// This works on unpacked bits. Matrix.Hamming is the packed equivalent used
// on the query path.
func Hamming(query []bool, candidates [][]bool) []int {
	out := make([]int, len(candidates))
	for r, row := range candidates {
		n := max(len(query), len(row))
		d := 0
		for i := 0; i < n; i++ {
			var q, c bool
			if i < len(query) {
				q = query[i]
			}
			if i < len(row) {
				c = row[i]
			}
			if q != c {
				d++
			}
		}
		out[r] = d
	}
	return out
}
