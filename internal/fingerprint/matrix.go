package fingerprint

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// Matrix is a dense row-major store of same-width fingerprints packed into
// 64-bit words. Row i is addressed by its insertion order.
//
// A Matrix is not safe for concurrent Append, but any number of goroutines
// may call Hamming once appends are done.
type Matrix struct {
	bits  int
	words int
	rows  int
	data  []uint64
}

// NewMatrix creates an empty matrix for fingerprints of the given width.
func NewMatrix(width int) *Matrix {
	return &Matrix{
		bits:  width,
		words: (width + 63) / 64,
	}
}

// Bits returns the fingerprint width every row must have.
func (m *Matrix) Bits() int {
	return m.bits
}

// Rows returns the number of appended fingerprints.
func (m *Matrix) Rows() int {
	return m.rows
}

// Append adds f as the next row.
func (m *Matrix) Append(f Fingerprint) error {
	if f.bits != m.bits {
		return fmt.Errorf("%w: row has %d bits, matrix has %d", ErrWidthMismatch, f.bits, m.bits)
	}

	m.data = append(m.data, make([]uint64, m.words)...)
	toWords(f.key, m.data[m.rows*m.words:])
	m.rows++

	return nil
}

// Row returns row i as a Fingerprint.
func (m *Matrix) Row(i int) Fingerprint {
	row := m.data[i*m.words : (i+1)*m.words]
	buf := make([]byte, m.words*8)
	for w, x := range row {
		binary.BigEndian.PutUint64(buf[w*8:], x)
	}
	return Fingerprint{bits: m.bits, key: buf[:ByteLen(m.bits)]}
}

// Hamming writes the distance between query and every row into dst, growing
// it when needed, and returns the filled slice of length Rows().
func (m *Matrix) Hamming(query Fingerprint, dst []int) ([]int, error) {
	if query.bits != m.bits {
		return nil, fmt.Errorf("%w: query has %d bits, matrix has %d", ErrWidthMismatch, query.bits, m.bits)
	}

	if cap(dst) < m.rows {
		dst = make([]int, m.rows)
	}
	dst = dst[:m.rows]

	q := make([]uint64, m.words)
	toWords(query.key, q)

	if m.words == 1 {
		q0 := q[0]
		for r, x := range m.data[:m.rows] {
			dst[r] = bits.OnesCount64(x ^ q0)
		}
		return dst, nil
	}

	for r := 0; r < m.rows; r++ {
		row := m.data[r*m.words : (r+1)*m.words]
		d := 0
		for w, x := range row {
			d += bits.OnesCount64(x ^ q[w])
		}
		dst[r] = d
	}

	return dst, nil
}

// toWords packs key big-endian into dst, zero-padding the last word.
func toWords(key []byte, dst []uint64) {
	for w := range dst {
		start := w * 8
		if start+8 <= len(key) {
			dst[w] = binary.BigEndian.Uint64(key[start:])
			continue
		}
		var tail [8]byte
		if start < len(key) {
			copy(tail[:], key[start:])
		}
		dst[w] = binary.BigEndian.Uint64(tail[:])
	}
}
