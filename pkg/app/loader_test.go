package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_Local(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocklist.txt")
	require.NoError(t, os.WriteFile(path, []byte("FepMPR8bmBZrSGtWKdvWRYSQ1UNSwBF5cnDDhXsDtUxy\n"), 0o600))

	for _, fileURL := range []string{path, "file://" + path} {
		data, err := LoadFile(fileURL)
		require.NoError(t, err)
		assert.Equal(t, "FepMPR8bmBZrSGtWKdvWRYSQ1UNSwBF5cnDDhXsDtUxy\n", string(data))
	}

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	_, err = LoadFile("s3://bucket/keys.txt")
	assert.Error(t, err)
}

func TestRegisterFileLoaderCtor_Duplicate(t *testing.T) {
	assert.Panics(t, func() {
		RegisterFileLoaderCtor("file", func() (FileLoader, error) { return LocalLoader{}, nil })
	})
}
