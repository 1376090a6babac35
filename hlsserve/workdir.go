package hlsserve

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const tempDirPrefix = "catt-hls-"

// prepareWorkDir returns an absolute work directory. When dir is empty a
// fresh temp dir is created and owned reports true.
func prepareWorkDir(dir string) (path string, owned bool, err error) {
	if dir == "" {
		tmp, err := os.MkdirTemp("", tempDirPrefix)
		if err != nil {
			return "", false, fmt.Errorf("create temp work dir: %w", err)
		}
		return tmp, true, nil
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false, fmt.Errorf("resolve work dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", false, fmt.Errorf("create work dir: %w", err)
	}
	return abs, false, nil
}

// isSafeTempDir only accepts our own prefixed directories directly under
// the system temp dir.
func isSafeTempDir(dir string) bool {
	if dir == "" {
		return false
	}

	clean := filepath.Clean(dir)
	if !strings.HasPrefix(filepath.Base(clean), tempDirPrefix) {
		return false
	}

	root := filepath.Clean(os.TempDir())
	return filepath.Dir(clean) == root
}

// removeWorkDir deletes a temp dir created by prepareWorkDir.
func removeWorkDir(dir string) error {
	if !isSafeTempDir(dir) {
		return fmt.Errorf("refusing to remove %q", dir)
	}
	return os.RemoveAll(dir)
}
