package fileloader

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoader_LoadImage(t *testing.T) {
	loader := NewLoader(Config{MaxFileSize: 1024})

	t.Run("png", func(t *testing.T) {
		path := writeFile(t, "photo.png", []byte("\x89PNG\r\n\x1a\nrest"))
		file, err := loader.LoadImage(path)
		require.NoError(t, err)
		require.Equal(t, "photo.png", file.Name)
		require.Equal(t, "image/png", file.ContentType)
		require.NotEmpty(t, file.Data)
	})

	t.Run("not an image", func(t *testing.T) {
		path := writeFile(t, "notes.txt", []byte("just text"))
		_, err := loader.LoadImage(path)
		require.Error(t, err)
		require.Contains(t, err.Error(), "not an image")
	})

	t.Run("too big", func(t *testing.T) {
		path := writeFile(t, "big.png", bytes.Repeat([]byte("a"), 2048))
		_, err := loader.LoadImage(path)
		require.Error(t, err)
		require.True(t, strings.HasPrefix(err.Error(), "file is too big"))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loader.LoadImage(filepath.Join(t.TempDir(), "nope.png"))
		require.Error(t, err)
	})
}
