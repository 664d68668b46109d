package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Spool hands rendered documents off to the storage collaborator by
// writing them to a spool directory the uploader drains. The returned
// reference is the file path.
type Spool struct {
	dir string
}

func NewSpool(dir string) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create spool dir %s: %w", dir, err)
	}
	return &Spool{dir: dir}, nil
}

func (s *Spool) Store(ctx context.Context, jobID uuid.UUID, document []byte) (string, error) {
	path := filepath.Join(s.dir, jobID.String()+".pdf")

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, document, 0o644); err != nil {
		return "", fmt.Errorf("storage: write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("storage: finalize artifact: %w", err)
	}
	return path, nil
}
