package fsutil

import (
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFiles_WalksDirectoriesInSortedOrder(t *testing.T) {
	fs := memfs.New()
	for _, name := range []string{"photos/c.png", "photos/a.png", "photos/sub/b.png", "photos/readme.txt"} {
		require.NoError(t, util.WriteFile(fs, name, []byte("x"), 0644))
	}

	files, err := FindFiles(fs, []string{"photos"}, func(p string) bool {
		return strings.HasSuffix(p, ".png")
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"photos/a.png", "photos/c.png", "photos/sub/b.png"}, files)
}

func TestFindFiles_KeepsRootOrderAndDeduplicates(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "z.png", []byte("x"), 0644))
	require.NoError(t, util.WriteFile(fs, "dir/a.png", []byte("x"), 0644))

	files, err := FindFiles(fs, []string{"z.png", "dir", "dir/a.png"}, func(string) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, []string{"z.png", "dir/a.png"}, files)
}

func TestFindFiles_MissingRoot(t *testing.T) {
	_, err := FindFiles(memfs.New(), []string{"missing"}, func(string) bool { return true })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error accessing path missing")
}

func TestFindFilesByExtension(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "cfg/main.hcl", []byte(""), 0644))
	require.NoError(t, util.WriteFile(fs, "cfg/other.txt", []byte(""), 0644))

	files, err := FindFilesByExtension(fs, "cfg", ".hcl")
	require.NoError(t, err)
	assert.Equal(t, []string{"cfg/main.hcl"}, files)

	assert.Panics(t, func() { _, _ = FindFilesByExtension(fs, "cfg", "") })
}
