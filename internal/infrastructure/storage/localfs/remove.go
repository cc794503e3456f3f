package localfs

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// ForceRemoveAll removes path like os.RemoveAll, first granting the owner write
// access on every entry so read-only files and directories do not block it.
// A missing path is not an error.
func ForceRemoveAll(path string) error {
	if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if d == nil {
				return nil
			}
			// Unreadable directory: unlock it and let the walk retry its entries.
			_ = os.Chmod(p, 0o755)
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		mode := os.FileMode(0o644)
		if d.IsDir() {
			mode = 0o755
		}
		_ = os.Chmod(p, mode)
		return nil
	})

	return os.RemoveAll(path)
}
