// Package fsutil provides file system utility functions.
package fsutil

import (
	"io/fs"
	"path/filepath"
)

// ListFiles recursively collects every regular file under rootPath in the
// order filepath.WalkDir visits them. It returns a slice of their full paths,
// empty but non-nil when there are none.
func ListFiles(rootPath string) ([]string, error) {
	files := []string{}
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}
