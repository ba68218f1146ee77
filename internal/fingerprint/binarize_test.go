package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinarizer_Deterministic(t *testing.T) {
	a, err := NewBinarizer(4, 64, 42)
	require.NoError(t, err)
	b, err := NewBinarizer(4, 64, 42)
	require.NoError(t, err)

	vec := []float32{0.3, -1.2, 2.5, 0.7}
	fa, err := a.Fingerprint(vec)
	require.NoError(t, err)
	fb, err := b.Fingerprint(vec)
	require.NoError(t, err)

	assert.True(t, fa.Equal(fb))
	assert.Equal(t, 64, fa.Bits())
}

func TestBinarizer_OppositeVectorsFlipEveryBit(t *testing.T) {
	bz, err := NewBinarizer(4, 32, 7)
	require.NoError(t, err)

	pos, err := bz.Fingerprint([]float32{1, 2, 3, 4})
	require.NoError(t, err)
	neg, err := bz.Fingerprint([]float32{-1, -2, -3, -4})
	require.NoError(t, err)

	d, err := Distance(pos, neg)
	require.NoError(t, err)
	assert.Equal(t, 32, d)
}

func TestBinarizer_ScaleInvariant(t *testing.T) {
	bz, err := NewBinarizer(3, 48, 1)
	require.NoError(t, err)

	a, err := bz.Fingerprint([]float32{0.5, 0.25, -0.125})
	require.NoError(t, err)
	b, err := bz.Fingerprint([]float32{4, 2, -1})
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
}

func TestBinarizer_Validation(t *testing.T) {
	_, err := NewBinarizer(0, 8, 1)
	assert.Error(t, err)

	_, err = NewBinarizer(4, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidLength)

	bz, err := NewBinarizer(4, 8, 1)
	require.NoError(t, err)
	_, err = bz.Fingerprint([]float32{1, 2})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
