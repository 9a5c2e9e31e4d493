package capture

import (
	"fmt"
	"os"
	"path/filepath"
)

// Save writes the artifact to dir as <prefix>-<id>.webm so it can be played
// back locally, and returns the file path.
func Save(dir, prefix string, a Artifact) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating recordings directory: %w", err)
	}
	name := fmt.Sprintf("%s-%s.webm", prefix, a.ID)
	path := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, name+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("saving recording: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(a.Data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("saving recording: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("saving recording: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("saving recording: %w", err)
	}
	return path, nil
}
