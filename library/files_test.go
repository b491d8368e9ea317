package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ListFiles(t *testing.T) {
	lib := newTestLibrary(t, Config{})
	root := lib.Root()

	writePdf(t, root, "b.pdf", "page one")
	writeFile(t, root, "a.txt", "hello world")
	writeFile(t, root, "c.BIN", "")
	require.NoError(t, os.Mkdir(filepath.Join(root, "nested"), 0o755))
	writeFile(t, root, filepath.Join("nested", "hidden.pdf"), "x")

	files, err := lib.ListFiles()
	require.NoError(t, err)
	require.Len(t, files, 3)

	var names []string
	for _, f := range files {
		names = append(names, f.Name)

		stat, err := os.Stat(f.Path)
		require.NoError(t, err)
		assert.Equal(t, stat.Size(), f.Size, f.Name)
		assert.True(t, filepath.IsAbs(f.Path))
	}

	assert.Equal(t, []string{"a.txt", "b.pdf", "c.BIN"}, names)
	assert.Equal(t, ".txt", files[0].Extension)
	assert.Equal(t, ".bin", files[2].Extension)
	assert.Equal(t, int64(0), files[2].Size)
}

func Test_ListFiles_Empty(t *testing.T) {
	lib := newTestLibrary(t, Config{})

	files, err := lib.ListFiles()
	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)
}

func Test_ListFiles_MissingDirectory(t *testing.T) {
	lib := newTestLibrary(t, Config{Root: filepath.Join(t.TempDir(), "missing")})

	_, err := lib.ListFiles()
	assert.ErrorIs(t, err, ErrDirectoryNotFound)
}

func Test_ListFiles_RootIsFile(t *testing.T) {
	root := writeFile(t, t.TempDir(), "file.txt", "x")
	lib := newTestLibrary(t, Config{Root: root})

	_, err := lib.ListFiles()
	assert.ErrorIs(t, err, ErrDirectoryNotFound)
}
