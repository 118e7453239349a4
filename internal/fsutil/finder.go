// Package fsutil provides file system utility functions.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// FindFilesByExtension recursively searches the given root path for all files ending
// with the specified extension. It returns a slice of their full paths.
func FindFilesByExtension(fs billy.Filesystem, rootPath string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}
	return FindFiles(fs, []string{rootPath}, func(path string) bool {
		return strings.HasSuffix(path, extension)
	})
}

// FindFiles expands each root into the files it denotes: a file root is kept
// as is when keep accepts it, a directory root is walked recursively. Files of
// a directory are returned sorted by path; roots keep their given order and a
// path reachable from several roots is returned once.
func FindFiles(fs billy.Filesystem, roots []string, keep func(path string) bool) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}

	for _, root := range roots {
		info, err := fs.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", root, err)
		}

		if !info.IsDir() {
			if keep(root) {
				add(root)
			}
			continue
		}

		var found []string
		err = util.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && keep(p) {
				found = append(found, filepath.Clean(p))
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", root, err)
		}
		sort.Strings(found)
		for _, p := range found {
			add(p)
		}
	}

	return files, nil
}
