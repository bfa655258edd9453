package heapdump

import (
	"os"
	"path/filepath"
)

// globMatch wraps path/filepath.Match for class-name glob filtering. No
// third-party glob matcher appears anywhere in the retrieved example
// corpus (pkg/filter's ClassFilter does prefix/suffix/contains matching,
// not shell-style globs), so this is the one ambient concern in the
// engine built directly on the standard library rather than a pack
// dependency.
func globMatch(pattern, name string) (bool, error) {
	return filepath.Match(pattern, name)
}

// replaceFile atomically swaps newPath into place at finalPath, matching
// the "rename-or-truncate is the implementer's choice"
// language for committing index files.
func replaceFile(newPath, finalPath string) error {
	return os.Rename(newPath, finalPath)
}
