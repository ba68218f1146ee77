package explorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iishyfishyy/lookalike/internal/dataset"
)

func TestPartition(t *testing.T) {
	labelled := &dataset.Item{ID: "labelled", Annotations: []dataset.Annotation{dataset.Label{Name: "cat"}}}
	coll := dataset.NewCollection("c",
		keyed("k1", "01"),
		labelled,
		keyed("k2", "10"),
		&dataset.Item{ID: "bare"},
	)

	with, without, err := Partition(coll)
	require.NoError(t, err)

	assert.Equal(t, "c", with.Name())
	assert.Equal(t, "c", without.Name())
	assert.Equal(t, []string{"k1", "k2"}, itemIDs(with))
	assert.Equal(t, []string{"labelled", "bare"}, itemIDs(without))
	assert.Equal(t, 4, coll.Len(), "input is not modified")
}

func TestPartition_Ambiguous(t *testing.T) {
	dup := keyed("dup", "01")
	dup.AttachHashKey(bits("10"))

	_, _, err := Partition(dataset.NewCollection("train", keyed("ok", "00"), dup))
	var ae *AmbiguousFingerprintError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "train", ae.Collection)
	assert.Equal(t, "dup", ae.ItemID)
	assert.Equal(t, 2, ae.Count)
	assert.Contains(t, err.Error(), `collection "train"`)
}

func TestFingerprintOf(t *testing.T) {
	_, ok, err := FingerprintOf(&dataset.Item{ID: "none"})
	require.NoError(t, err)
	assert.False(t, ok)

	fp, ok, err := FingerprintOf(keyed("one", "1100"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "c0", fp.String())
}

func TestSelectTopK(t *testing.T) {
	tests := []struct {
		name      string
		distances []int
		k         int
		want      []int
	}{
		{"ties keep index order", []int{3, 1, 3, 1, 0}, 5, []int{4, 1, 3, 0, 2}},
		{"k smaller than rows", []int{5, 4, 3, 2}, 2, []int{3, 2}},
		{"k larger than rows", []int{2, 2}, 10, []int{0, 1}},
		{"empty", nil, 3, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, selectTopK(tt.distances, tt.k))
		})
	}
}

func itemIDs(c *dataset.Collection) []string {
	var out []string
	for _, it := range c.Items() {
		out = append(out, it.ID)
	}
	return out
}
