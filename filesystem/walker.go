package filesystem

import (
	"io/fs"
	"path/filepath"
	"slices"
)

// Directories returns root and every directory below it, skipping hidden
// directories and the excluded dependency and output trees.
func Directories(root string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	var dirs []string
	err = walkDirectories(root, func(dir string) {
		dirs = append(dirs, dir)
	})
	if err != nil {
		return nil, err
	}
	return dirs, nil
}

// walkDirectories calls fn for root and each watchable directory below it,
// in lexical order. Subdirectories that cannot be read are skipped; only an
// unreadable root is an error.
func walkDirectories(root string, fn func(dir string)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return filepath.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDirectory(d.Name()) {
			return filepath.SkipDir
		}
		fn(path)
		return nil
	})
}

// skipDirectory reports whether a directory named name is left unwatched.
func skipDirectory(name string) bool {
	return isHidden(name) || slices.Contains(excludedDirectories, name)
}
