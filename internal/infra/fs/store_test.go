package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSaveAndLoadJSON(t *testing.T) {
	store := NewStore(t.TempDir())

	in := payload{Name: "uni", Count: 3}
	require.NoError(t, store.SaveJSON("state.json", in))

	var out payload
	require.NoError(t, store.LoadJSON("state.json", &out))
	assert.Equal(t, in, out)
}

func TestSaveCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	store := NewStore(dir)

	require.NoError(t, store.SaveJSON("state.json", payload{Name: "x"}))

	_, err := os.Stat(filepath.Join(dir, "state.json"))
	assert.NoError(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	store := NewStore(t.TempDir())

	var out payload
	err := store.LoadJSON("absent.json", &out)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	require.NoError(t, store.SaveJSON("state.json", payload{}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestSaveOverwrites(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.SaveJSON("state.json", payload{Count: 1}))
	require.NoError(t, store.SaveJSON("state.json", payload{Count: 2}))

	var out payload
	require.NoError(t, store.LoadJSON("state.json", &out))
	assert.Equal(t, 2, out.Count)
}
