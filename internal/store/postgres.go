// Package store provides the Postgres-backed progress/challenge store and
// job status sink, plus the filesystem artifact store.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/applyflow/ds160-runner/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DB is the subset of pgxpool.Pool the store needs; pgxmock satisfies it in
// tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements schemas.ProgressStore and schemas.JobStatusSink
// on one connection pool.
type PostgresStore struct {
	db           DB
	challengeTTL time.Duration
	logger       *zap.Logger
}

var (
	_ schemas.ProgressStore = (*PostgresStore)(nil)
	_ schemas.JobStatusSink = (*PostgresStore)(nil)
)

// NewPostgresStore wraps a pool.
func NewPostgresStore(db DB, challengeTTL time.Duration, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		db:           db,
		challengeTTL: challengeTTL,
		logger:       logger.With(zap.String("component", "store")),
	}
}

// EnsureSchema creates the tables the runner needs if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			embassy TEXT NOT NULL DEFAULT '',
			application_id TEXT,
			failure_reason TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS progress_updates (
			id BIGSERIAL PRIMARY KEY,
			job_id UUID NOT NULL,
			step_name TEXT NOT NULL,
			status TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			percent INT NOT NULL DEFAULT 0,
			captcha_image TEXT,
			needs_captcha BOOLEAN NOT NULL DEFAULT false,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS captcha_challenges (
			id UUID PRIMARY KEY,
			job_id UUID NOT NULL,
			image_url TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			expires_at TIMESTAMPTZ NOT NULL,
			solved BOOLEAN NOT NULL DEFAULT false,
			solution TEXT,
			solved_at TIMESTAMPTZ,
			refresh_requested BOOLEAN NOT NULL DEFAULT false,
			superseded BOOLEAN NOT NULL DEFAULT false
		);`,
		`CREATE INDEX IF NOT EXISTS idx_progress_job ON progress_updates (job_id, id);`,
		`CREATE INDEX IF NOT EXISTS idx_challenges_job ON captcha_challenges (job_id, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
	}
	return nil
}

// -- ProgressStore --

const insertUpdateSQL = `
	INSERT INTO progress_updates
		(job_id, step_name, status, message, percent, captcha_image, needs_captcha, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// Append records one progress update. Metadata is stored as JSONB.
func (s *PostgresStore) Append(ctx context.Context, update schemas.ProgressUpdate) error {
	var metadata []byte
	if update.Metadata != nil {
		var err error
		if metadata, err = json.Marshal(update.Metadata); err != nil {
			return fmt.Errorf("marshaling update metadata: %w", err)
		}
	}
	createdAt := update.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, insertUpdateSQL,
		update.JobID, update.StepName, string(update.Status), update.Message,
		update.Percent, nullable(update.CaptchaImage), update.NeedsCaptcha, metadata, createdAt)
	if err != nil {
		return fmt.Errorf("appending progress update: %w", err)
	}
	return nil
}

const selectUpdateSQL = `
	SELECT job_id, step_name, status, message, percent, captcha_image, needs_captcha, metadata, created_at
	FROM progress_updates WHERE job_id = $1 ORDER BY id`

// Latest returns the newest update for a job, or nil when none exist.
func (s *PostgresStore) Latest(ctx context.Context, jobID uuid.UUID) (*schemas.ProgressUpdate, error) {
	row := s.db.QueryRow(ctx, selectUpdateSQL+" DESC LIMIT 1", jobID)
	update, err := scanUpdate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching latest update: %w", err)
	}
	return update, nil
}

// History returns a job's full update log, oldest first.
func (s *PostgresStore) History(ctx context.Context, jobID uuid.UUID) ([]schemas.ProgressUpdate, error) {
	rows, err := s.db.Query(ctx, selectUpdateSQL, jobID)
	if err != nil {
		return nil, fmt.Errorf("fetching update history: %w", err)
	}
	defer rows.Close()

	var history []schemas.ProgressUpdate
	for rows.Next() {
		update, err := scanUpdate(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning update: %w", err)
		}
		history = append(history, *update)
	}
	return history, rows.Err()
}

func scanUpdate(row pgx.Row) (*schemas.ProgressUpdate, error) {
	var (
		update       schemas.ProgressUpdate
		status       string
		captchaImage *string
		metadata     []byte
	)
	err := row.Scan(&update.JobID, &update.StepName, &status, &update.Message,
		&update.Percent, &captchaImage, &update.NeedsCaptcha, &metadata, &update.CreatedAt)
	if err != nil {
		return nil, err
	}
	update.Status = schemas.JobStatus(status)
	if captchaImage != nil {
		update.CaptchaImage = *captchaImage
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &update.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling update metadata: %w", err)
		}
	}
	return &update, nil
}

const selectChallengeSQL = `
	SELECT id, job_id, image_url, created_at, expires_at, solved, solution, refresh_requested
	FROM captcha_challenges`

// UnsolvedChallenge returns the job's current unsolved, non-superseded
// challenge, or nil.
func (s *PostgresStore) UnsolvedChallenge(ctx context.Context, jobID uuid.UUID) (*schemas.CaptchaChallenge, error) {
	row := s.db.QueryRow(ctx,
		selectChallengeSQL+` WHERE job_id = $1 AND solved = false AND superseded = false
		 ORDER BY created_at DESC LIMIT 1`, jobID)
	return scanChallenge(row)
}

// SolvedChallenge returns the job's newest solved, non-superseded challenge,
// or nil.
func (s *PostgresStore) SolvedChallenge(ctx context.Context, jobID uuid.UUID) (*schemas.CaptchaChallenge, error) {
	row := s.db.QueryRow(ctx,
		selectChallengeSQL+` WHERE job_id = $1 AND solved = true AND superseded = false
		 ORDER BY solved_at DESC LIMIT 1`, jobID)
	return scanChallenge(row)
}

// CreateChallenge supersedes any existing unsolved challenge for the job and
// records a fresh one, enforcing the at-most-one-unsolved invariant in the
// data rather than the caller.
func (s *PostgresStore) CreateChallenge(ctx context.Context, jobID uuid.UUID, imageRef string) (*schemas.CaptchaChallenge, error) {
	if _, err := s.db.Exec(ctx,
		`UPDATE captcha_challenges SET superseded = true WHERE job_id = $1 AND solved = false`,
		jobID); err != nil {
		return nil, fmt.Errorf("superseding previous challenges: %w", err)
	}

	challenge := &schemas.CaptchaChallenge{
		ID:        uuid.New(),
		JobID:     jobID,
		ImageURL:  imageRef,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(s.challengeTTL),
	}
	if _, err := s.db.Exec(ctx,
		`INSERT INTO captcha_challenges (id, job_id, image_url, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		challenge.ID, challenge.JobID, challenge.ImageURL, challenge.CreatedAt, challenge.ExpiresAt,
	); err != nil {
		return nil, fmt.Errorf("creating challenge: %w", err)
	}
	return challenge, nil
}

// UpdateChallengeImage swaps the current unsolved challenge's image in place
// (a refresh honored), clearing the refresh flag and restarting the TTL.
func (s *PostgresStore) UpdateChallengeImage(ctx context.Context, jobID uuid.UUID, imageRef string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE captcha_challenges
		 SET image_url = $2, refresh_requested = false, created_at = now(), expires_at = now() + $3::interval
		 WHERE job_id = $1 AND solved = false AND superseded = false`,
		jobID, imageRef, s.challengeTTL.String())
	if err != nil {
		return fmt.Errorf("updating challenge image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no unsolved challenge to refresh for job %s", jobID)
	}
	return nil
}

func scanChallenge(row pgx.Row) (*schemas.CaptchaChallenge, error) {
	var (
		challenge schemas.CaptchaChallenge
		solution  *string
	)
	err := row.Scan(&challenge.ID, &challenge.JobID, &challenge.ImageURL,
		&challenge.CreatedAt, &challenge.ExpiresAt, &challenge.Solved,
		&solution, &challenge.RefreshRequested)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning challenge: %w", err)
	}
	if solution != nil {
		challenge.Solution = *solution
	}
	return &challenge, nil
}

// -- JobStatusSink --

// CreateJob registers a new pending job. Used by the queue consumer when a
// submission message arrives for a job it has not seen.
func (s *PostgresStore) CreateJob(ctx context.Context, job *schemas.Job) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO jobs (id, user_id, status, embassy, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		job.ID, job.UserID, string(schemas.JobStatusPending), job.Embassy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("creating job: %w", err)
	}
	return nil
}

// MarkRunning transitions a job to running unless it is already terminal.
func (s *PostgresStore) MarkRunning(ctx context.Context, jobID uuid.UUID) error {
	return s.transition(ctx, jobID,
		`UPDATE jobs SET status = 'running', updated_at = now()
		 WHERE id = $1 AND status NOT IN ('failed', 'completed', 'cancelled')`)
}

// MarkFailed records the terminal failure reason.
func (s *PostgresStore) MarkFailed(ctx context.Context, jobID uuid.UUID, reason string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE jobs SET status = 'failed', failure_reason = $2, updated_at = now()
		 WHERE id = $1 AND status NOT IN ('failed', 'completed', 'cancelled')`,
		jobID, reason)
	if err != nil {
		return fmt.Errorf("marking job failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Warn("MarkFailed hit a job already terminal", zap.String("job_id", jobID.String()))
	}
	return nil
}

// MarkCompleted records completion and the captured application ID.
func (s *PostgresStore) MarkCompleted(ctx context.Context, jobID uuid.UUID, result schemas.TerminalResult) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE jobs SET status = 'completed', application_id = $2, updated_at = now()
		 WHERE id = $1 AND status NOT IN ('failed', 'completed', 'cancelled')`,
		jobID, nullable(result.ApplicationID))
	if err != nil {
		return fmt.Errorf("marking job completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		s.logger.Warn("MarkCompleted hit a job already terminal", zap.String("job_id", jobID.String()))
	}
	return nil
}

func (s *PostgresStore) transition(ctx context.Context, jobID uuid.UUID, sql string) error {
	tag, err := s.db.Exec(ctx, sql, jobID)
	if err != nil {
		return fmt.Errorf("updating job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is terminal; status transitions are monotonic", jobID)
	}
	return nil
}

// nullable maps empty strings to NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
