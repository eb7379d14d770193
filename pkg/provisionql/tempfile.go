package provisionql

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// withStagedFile writes data to a file in a private temporary directory and
// calls fn with its path. The directory is removed when fn returns, on
// success and on error.
func withStagedFile(data []byte, name string, mode os.FileMode, fn func(path string) error) error {
	dir, err := os.MkdirTemp("", "provisionql-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(dir)

	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = uuid.NewString()
	} else {
		base = uuid.NewString() + "-" + base
	}
	path := filepath.Join(dir, base)

	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	// WriteFile leaves the umask applied
	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("failed to set temp file mode: %w", err)
	}
	return fn(path)
}
