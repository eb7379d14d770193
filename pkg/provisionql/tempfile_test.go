package provisionql

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestWithStagedFile writes the data and removes it afterwards
func TestWithStagedFile(t *testing.T) {
	var staged string
	err := withStagedFile([]byte("payload"), "dir/Binary", 0o644, func(path string) error {
		staged = path
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if string(data) != "payload" {
			t.Errorf("Expected payload, got %q", data)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withStagedFile failed: %v", err)
	}
	if !strings.HasSuffix(filepath.Base(staged), "-Binary") {
		t.Errorf("Unexpected staged name: %s", staged)
	}
	if _, err := os.Stat(filepath.Dir(staged)); !os.IsNotExist(err) {
		t.Errorf("Staging directory was not removed")
	}
}

// TestWithStagedFile_Error cleans up and returns the callback error
func TestWithStagedFile_Error(t *testing.T) {
	boom := errors.New("boom")
	var staged string
	err := withStagedFile([]byte("x"), "", 0o600, func(path string) error {
		staged = path
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected boom, got %v", err)
	}
	if staged == "" {
		t.Fatal("Callback was not called")
	}
	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Errorf("Staged file %s was not removed", staged)
	}
}

// TestWithStagedFile_UniqueNames never reuses a path
func TestWithStagedFile_UniqueNames(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		_ = withStagedFile(nil, "App", 0o755, func(path string) error {
			if seen[path] {
				t.Errorf("Path reused: %s", path)
			}
			seen[path] = true
			return nil
		})
	}
}
