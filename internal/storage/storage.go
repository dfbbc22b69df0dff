package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ArtifactStore persists generated images in a local directory
type ArtifactStore struct {
	Dir string
}

func New(dir string) *ArtifactStore {
	return &ArtifactStore{Dir: dir}
}

// Write stores data under name, creating the directory if needed and
// replacing any existing file of the same name. It returns the file path.
func (s *ArtifactStore) Write(name string, data []byte) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid artifact name: %q", name)
	}

	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	return path, nil
}
