package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Empty(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	h, err := Load()
	require.NoError(t, err)
	assert.Empty(t, h.Entries)
	assert.Empty(t, h.Recent(5))
}

func TestSaveAndLoad(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	h, err := Load()
	require.NoError(t, err)
	h.AddEntry(NewEntry("text", "red car", 2, []Result{{ItemID: "a.jpg", Distance: 3}}, nil))
	h.AddEntry(NewEntry("hash", "00ff", 5, nil, errors.New("fingerprint width differs from index")))
	require.NoError(t, h.Save())

	_, err = os.Stat(filepath.Join(home, ".lookalike", "history.json"))
	require.NoError(t, err)

	loaded, err := Load()
	require.NoError(t, err)
	require.Len(t, loaded.Entries, 2)
	assert.Equal(t, "red car", loaded.Entries[0].Query)
	assert.Equal(t, 3, loaded.Entries[0].Results[0].Distance)
	assert.Contains(t, loaded.Entries[1].Error, "width")

	recent := loaded.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "00ff", recent[0].Query)
}

func TestSave_Trims(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	h := &History{}
	for i := range MaxEntries + 10 {
		h.AddEntry(NewEntry("text", fmt.Sprintf("q%d", i), 1, nil, nil))
	}
	require.NoError(t, h.Save())

	loaded, err := Load()
	require.NoError(t, err)
	require.Len(t, loaded.Entries, MaxEntries)
	assert.Equal(t, "q10", loaded.Entries[0].Query)
	assert.Len(t, loaded.Recent(0), MaxEntries)
}
