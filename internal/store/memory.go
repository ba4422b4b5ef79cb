package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/applyflow/ds160-runner/api/schemas"
)

// MemoryStore is an in-process ProgressStore + JobStatusSink for local runs
// and tests. Same semantics as the Postgres store, including challenge
// supersession and monotonic status transitions.
type MemoryStore struct {
	mu           sync.RWMutex
	updates      map[uuid.UUID][]schemas.ProgressUpdate
	challenges   map[uuid.UUID][]*schemas.CaptchaChallenge
	jobs         map[uuid.UUID]*schemas.Job
	challengeTTL time.Duration
	logger       *zap.Logger
}

var (
	_ schemas.ProgressStore = (*MemoryStore)(nil)
	_ schemas.JobStatusSink = (*MemoryStore)(nil)
)

// NewMemoryStore builds an empty store.
func NewMemoryStore(challengeTTL time.Duration, logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		updates:      make(map[uuid.UUID][]schemas.ProgressUpdate),
		challenges:   make(map[uuid.UUID][]*schemas.CaptchaChallenge),
		jobs:         make(map[uuid.UUID]*schemas.Job),
		challengeTTL: challengeTTL,
		logger:       logger.With(zap.String("component", "memory_store")),
	}
}

func (s *MemoryStore) Append(ctx context.Context, update schemas.ProgressUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if update.CreatedAt.IsZero() {
		update.CreatedAt = time.Now().UTC()
	}
	s.updates[update.JobID] = append(s.updates[update.JobID], update)
	return nil
}

func (s *MemoryStore) Latest(ctx context.Context, jobID uuid.UUID) (*schemas.ProgressUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.updates[jobID]
	if len(history) == 0 {
		return nil, nil
	}
	latest := history[len(history)-1]
	return &latest, nil
}

func (s *MemoryStore) History(ctx context.Context, jobID uuid.UUID) ([]schemas.ProgressUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := make([]schemas.ProgressUpdate, len(s.updates[jobID]))
	copy(history, s.updates[jobID])
	return history, nil
}

func (s *MemoryStore) UnsolvedChallenge(ctx context.Context, jobID uuid.UUID) (*schemas.CaptchaChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.challenges[jobID]) - 1; i >= 0; i-- {
		c := s.challenges[jobID][i]
		if !c.Solved {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) SolvedChallenge(ctx context.Context, jobID uuid.UUID) (*schemas.CaptchaChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.challenges[jobID]) - 1; i >= 0; i-- {
		c := s.challenges[jobID][i]
		if c.Solved {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) CreateChallenge(ctx context.Context, jobID uuid.UUID, imageRef string) (*schemas.CaptchaChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Supersede: drop any unsolved predecessor so at most one unsolved
	// challenge exists per job.
	kept := s.challenges[jobID][:0]
	for _, c := range s.challenges[jobID] {
		if c.Solved {
			kept = append(kept, c)
		}
	}
	s.challenges[jobID] = kept

	challenge := &schemas.CaptchaChallenge{
		ID:        uuid.New(),
		JobID:     jobID,
		ImageURL:  imageRef,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(s.challengeTTL),
	}
	s.challenges[jobID] = append(s.challenges[jobID], challenge)
	copied := *challenge
	return &copied, nil
}

func (s *MemoryStore) UpdateChallengeImage(ctx context.Context, jobID uuid.UUID, imageRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.challenges[jobID]) - 1; i >= 0; i-- {
		c := s.challenges[jobID][i]
		if !c.Solved {
			c.ImageURL = imageRef
			c.RefreshRequested = false
			c.CreatedAt = time.Now().UTC()
			c.ExpiresAt = time.Now().UTC().Add(s.challengeTTL)
			return nil
		}
	}
	return nil
}

// SolveChallenge records the human's answer for the current unsolved
// challenge. Test/local-run helper; in production the API layer writes
// solutions directly to the database.
func (s *MemoryStore) SolveChallenge(jobID uuid.UUID, solution string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.challenges[jobID]) - 1; i >= 0; i-- {
		c := s.challenges[jobID][i]
		if !c.Solved {
			c.Solved = true
			c.Solution = solution
			return
		}
	}
}

// RequestRefresh flags the current unsolved challenge for re-capture.
// Test/local-run helper.
func (s *MemoryStore) RequestRefresh(jobID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.challenges[jobID]) - 1; i >= 0; i-- {
		c := s.challenges[jobID][i]
		if !c.Solved {
			c.RefreshRequested = true
			return
		}
	}
}

func (s *MemoryStore) CreateJob(ctx context.Context, job *schemas.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; !exists {
		copied := *job
		copied.Status = schemas.JobStatusPending
		s.jobs[job.ID] = &copied
	}
	return nil
}

func (s *MemoryStore) MarkRunning(ctx context.Context, jobID uuid.UUID) error {
	return s.setStatus(jobID, schemas.JobStatusRunning, "")
}

func (s *MemoryStore) MarkFailed(ctx context.Context, jobID uuid.UUID, reason string) error {
	return s.setStatus(jobID, schemas.JobStatusFailed, reason)
}

func (s *MemoryStore) MarkCompleted(ctx context.Context, jobID uuid.UUID, result schemas.TerminalResult) error {
	return s.setStatus(jobID, schemas.JobStatusCompleted, "")
}

// JobStatus reports the tracked status for assertions in tests.
func (s *MemoryStore) JobStatus(jobID uuid.UUID) schemas.JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if job, ok := s.jobs[jobID]; ok {
		return job.Status
	}
	return ""
}

func (s *MemoryStore) setStatus(jobID uuid.UUID, status schemas.JobStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		job = &schemas.Job{ID: jobID}
		s.jobs[jobID] = job
	}
	if job.Status.Terminal() {
		s.logger.Warn("Ignoring status transition on terminal job",
			zap.String("job_id", jobID.String()),
			zap.String("from", string(job.Status)),
			zap.String("to", string(status)))
		return nil
	}
	job.Status = status
	return nil
}
