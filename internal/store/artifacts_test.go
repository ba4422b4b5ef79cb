package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/applyflow/ds160-runner/api/schemas"
)

func TestFileArtifactStoreWritesPerJobDirectories(t *testing.T) {
	base := t.TempDir()
	s, err := NewFileArtifactStore(base, "https://cdn.example.test/artifacts", zap.NewNop())
	require.NoError(t, err)

	jobID := uuid.New()
	artifact, err := s.Store(context.Background(), []byte("png-bytes"), schemas.ArtifactMeta{
		JobID:    jobID,
		Kind:     "rejection",
		Filename: "step-5-rejected.png",
		MimeType: "image/png",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(artifact.PublicURL,
		"https://cdn.example.test/artifacts/"+jobID.String()+"/"))
	assert.True(t, strings.HasSuffix(artifact.PublicURL, "step-5-rejected.png"))

	entries, err := os.ReadDir(filepath.Join(base, jobID.String()))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(base, jobID.String(), entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestFileArtifactStoreRepeatedCapturesNeverCollide(t *testing.T) {
	base := t.TempDir()
	s, err := NewFileArtifactStore(base, "https://cdn.example.test/artifacts", zap.NewNop())
	require.NoError(t, err)

	jobID := uuid.New()
	meta := schemas.ArtifactMeta{JobID: jobID, Kind: "captcha", Filename: "captcha.png", MimeType: "image/png"}

	first, err := s.Store(context.Background(), []byte("one"), meta)
	require.NoError(t, err)
	second, err := s.Store(context.Background(), []byte("two"), meta)
	require.NoError(t, err)

	assert.NotEqual(t, first.PublicURL, second.PublicURL)

	entries, err := os.ReadDir(filepath.Join(base, jobID.String()))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFileArtifactStoreHonorsCancelledContext(t *testing.T) {
	s, err := NewFileArtifactStore(t.TempDir(), "https://cdn.example.test", zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Store(ctx, []byte("late"), schemas.ArtifactMeta{JobID: uuid.New(), Filename: "x.png"})
	assert.ErrorIs(t, err, context.Canceled)
}
