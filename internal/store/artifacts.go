package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/applyflow/ds160-runner/api/schemas"
)

// FileArtifactStore writes diagnostic blobs under a base directory, one
// subdirectory per job, and returns URLs rooted at a configured public base.
// Serving the directory is someone else's job (nginx, an S3 sync); the
// engine only needs stable references.
type FileArtifactStore struct {
	baseDir       string
	publicBaseURL string
	logger        *zap.Logger
}

var _ schemas.ArtifactStore = (*FileArtifactStore)(nil)

// NewFileArtifactStore ensures the base directory exists.
func NewFileArtifactStore(baseDir, publicBaseURL string, logger *zap.Logger) (*FileArtifactStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact dir: %w", err)
	}
	return &FileArtifactStore{
		baseDir:       baseDir,
		publicBaseURL: publicBaseURL,
		logger:        logger.With(zap.String("component", "artifact_store")),
	}, nil
}

// Store writes the blob and returns its identity and public URL. Filenames
// are prefixed with the artifact id so repeated captures never collide.
func (s *FileArtifactStore) Store(ctx context.Context, data []byte, meta schemas.ArtifactMeta) (*schemas.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.New()
	jobDir := filepath.Join(s.baseDir, meta.JobID.String())
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating job artifact dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s", id.String()[:8], meta.Filename)
	path := filepath.Join(jobDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing artifact: %w", err)
	}

	s.logger.Debug("Artifact stored",
		zap.String("kind", meta.Kind),
		zap.String("path", path),
		zap.Int("bytes", len(data)))

	return &schemas.Artifact{
		ID:        id,
		PublicURL: fmt.Sprintf("%s/%s/%s", s.publicBaseURL, meta.JobID, name),
	}, nil
}
