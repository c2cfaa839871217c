// Package scratch_test tests the ephemeral scratch store.
package scratch_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/distcrawl/internal/storage/scratch"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := scratch.New(scratch.Config{BaseDir: t.TempDir(), Name: "arxiv_pdfs"})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})
	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := scratch.New(scratch.Config{Name: "arxiv_pdfs"})
		assert.Error(t, err)
	})
	t.Run("MissingName", func(t *testing.T) {
		_, err := scratch.New(scratch.Config{BaseDir: t.TempDir()})
		assert.Error(t, err)
	})
	t.Run("NestedName", func(t *testing.T) {
		_, err := scratch.New(scratch.Config{BaseDir: t.TempDir(), Name: "a/b"})
		assert.Error(t, err)
	})
	t.Run("DoesNotCreateDirectory", func(t *testing.T) {
		base := t.TempDir()
		store, err := scratch.New(scratch.Config{BaseDir: base, Name: "mit_pdfs"})
		require.NoError(t, err)
		_, statErr := os.Stat(store.Dir())
		assert.True(t, os.IsNotExist(statErr))
	})
}

func TestPut(t *testing.T) {
	base := t.TempDir()
	store, err := scratch.New(scratch.Config{BaseDir: base, Name: "arxiv_pdfs"})
	require.NoError(t, err)

	t.Run("CreatesDirectoryOnDemand", func(t *testing.T) {
		data := bytes.Repeat([]byte("pdf"), scratch.ChunkSize)
		path, err := store.Put("2401.00001v1", bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(base, "arxiv_pdfs", "2401.00001v1"), path)

		// #nosec G304 -- test reads from the controlled temp directory.
		readData, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, data, readData)
	})

	t.Run("NumbersTakenNames", func(t *testing.T) {
		first, err := store.Put("dup.pdf", bytes.NewReader([]byte("first")))
		require.NoError(t, err)
		second, err := store.Put("dup.pdf", bytes.NewReader([]byte("second")))
		require.NoError(t, err)
		third, err := store.Put("dup.pdf", bytes.NewReader([]byte("third")))
		require.NoError(t, err)

		assert.Equal(t, filepath.Join(store.Dir(), "dup.pdf"), first)
		assert.Equal(t, filepath.Join(store.Dir(), "dup-1.pdf"), second)
		assert.Equal(t, filepath.Join(store.Dir(), "dup-2.pdf"), third)
		for path, want := range map[string]string{first: "first", second: "second", third: "third"} {
			// #nosec G304 -- test reads from the controlled temp directory.
			readData, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, want, string(readData))
		}
	})

	t.Run("NumbersNamesWithoutExtension", func(t *testing.T) {
		_, err := store.Put("index", bytes.NewReader([]byte("a")))
		require.NoError(t, err)
		path, err := store.Put("index", bytes.NewReader([]byte("b")))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(store.Dir(), "index-1"), path)
	})

	t.Run("EmptyName", func(t *testing.T) {
		_, err := store.Put("", bytes.NewReader([]byte("data")))
		assert.Error(t, err)
	})

	t.Run("PathTraversal", func(t *testing.T) {
		_, err := store.Put("../escape", bytes.NewReader([]byte("data")))
		assert.Error(t, err)
	})

	t.Run("ReaderFailure", func(t *testing.T) {
		_, err := store.Put("broken.pdf", failingReader{})
		assert.Error(t, err)
		_, statErr := os.Stat(filepath.Join(store.Dir(), "broken.pdf"))
		assert.True(t, os.IsNotExist(statErr), "partial file is removed")
	})
}

func TestPurge(t *testing.T) {
	base := t.TempDir()
	store, err := scratch.New(scratch.Config{BaseDir: base, Name: "mit_pdfs"})
	require.NoError(t, err)

	require.NoError(t, store.Purge(), "purging a missing directory is a no-op")

	_, err = store.Put("a.pdf", bytes.NewReader([]byte("a")))
	require.NoError(t, err)
	require.NoError(t, store.Purge())

	_, statErr := os.Stat(store.Dir())
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(base)
	assert.NoError(t, statErr, "base directory survives a purge")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}
