package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpool_StoreWritesArtifact(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSpool(filepath.Join(dir, "artifacts"))
	require.NoError(t, err)

	jobID := uuid.New()
	ref, err := s.Store(context.Background(), jobID, []byte("%PDF-1.7 test"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "artifacts", jobID.String()+".pdf"), ref)

	data, err := os.ReadFile(ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7 test"), data)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Join(dir, "artifacts"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSpool_StoreOverwritesExisting(t *testing.T) {
	s, err := NewSpool(t.TempDir())
	require.NoError(t, err)

	jobID := uuid.New()
	_, err = s.Store(context.Background(), jobID, []byte("first"))
	require.NoError(t, err)
	ref, err := s.Store(context.Background(), jobID, []byte("second"))
	require.NoError(t, err)

	data, err := os.ReadFile(ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}
