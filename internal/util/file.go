package util

import "os"

// EnsureDir creates path and any missing parents. An empty path or "." is a no-op.
func EnsureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o755)
}
