package fingerprint

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBits(rng *rand.Rand, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = rng.IntN(2) == 1
	}
	return out
}

func TestMatrix_HammingMatchesUnpacked(t *testing.T) {
	for _, width := range []int{1, 8, 13, 64, 65, 130, 256} {
		rng := rand.New(rand.NewPCG(uint64(width), 7))

		m := NewMatrix(width)
		rows := make([][]bool, 0, 20)
		for i := 0; i < 20; i++ {
			row := randomBits(rng, width)
			rows = append(rows, row)
			require.NoError(t, m.Append(Pack(row)))
		}

		q := randomBits(rng, width)
		got, err := m.Hamming(Pack(q), nil)
		require.NoError(t, err)
		assert.Equal(t, Hamming(q, rows), got, "width %d", width)
	}
}

func TestMatrix_SelfDistanceZero(t *testing.T) {
	m := NewMatrix(64)
	fp := Pack(randomBits(rand.New(rand.NewPCG(1, 2)), 64))
	require.NoError(t, m.Append(fp))

	got, err := m.Hamming(fp, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, got)
}

func TestMatrix_ReusesDst(t *testing.T) {
	m := NewMatrix(8)
	require.NoError(t, m.Append(Pack(bitsOf("00000000"))))
	require.NoError(t, m.Append(Pack(bitsOf("11111111"))))

	dst := make([]int, 0, 8)
	got, err := m.Hamming(Pack(bitsOf("00001111")), dst)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 4}, got)
	assert.Equal(t, cap(dst), cap(got))
}

func TestMatrix_WidthMismatch(t *testing.T) {
	m := NewMatrix(8)
	assert.ErrorIs(t, m.Append(Pack(bitsOf("0000"))), ErrWidthMismatch)

	_, err := m.Hamming(Pack(bitsOf("0000")), nil)
	assert.ErrorIs(t, err, ErrWidthMismatch)
}

func TestMatrix_Row(t *testing.T) {
	m := NewMatrix(12)
	a := Pack(bitsOf("101010101010"))
	b := Pack(bitsOf("000011110000"))
	require.NoError(t, m.Append(a))
	require.NoError(t, m.Append(b))

	assert.Equal(t, 2, m.Rows())
	assert.True(t, a.Equal(m.Row(0)))
	assert.True(t, b.Equal(m.Row(1)))
}
