package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/applyflow/ds160-runner/api/schemas"
)

// flexibleSQLMatcher builds a whitespace-insensitive regex for SQL mocks.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func newMockedStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresStore(mock, 2*time.Minute, zap.NewNop()), mock
}

func TestAppendStoresMetadataAsJSON(t *testing.T) {
	store, mock := newMockedStore(t)
	jobID := uuid.New()

	mock.ExpectExec(flexibleSQLMatcher(`INSERT INTO progress_updates`)).
		WithArgs(jobID, "Travel Info", "running", "Filling Travel Info", 35,
			pgxmock.AnyArg(), false, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.Append(context.Background(), schemas.ProgressUpdate{
		JobID:    jobID,
		StepName: "Travel Info",
		Status:   schemas.JobStatusRunning,
		Message:  "Filling Travel Info",
		Percent:  35,
		Metadata: map[string]any{"application_id": "AA00EXAMPLE"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestReturnsNilWhenNoHistory(t *testing.T) {
	store, mock := newMockedStore(t)
	jobID := uuid.New()

	mock.ExpectQuery(flexibleSQLMatcher(`SELECT job_id, step_name, status`)).
		WithArgs(jobID).
		WillReturnError(pgx.ErrNoRows)

	update, err := store.Latest(context.Background(), jobID)
	require.NoError(t, err)
	assert.Nil(t, update)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryScansUpdatesInOrder(t *testing.T) {
	store, mock := newMockedStore(t)
	jobID := uuid.New()
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{
		"job_id", "step_name", "status", "message", "percent",
		"captcha_image", "needs_captcha", "metadata", "created_at",
	}).
		AddRow(jobID, "Get Started", "running", "Filling Get Started", 10, (*string)(nil), false, []byte(nil), now).
		AddRow(jobID, "Get Started", "waiting_for_captcha", "Waiting for captcha solution", 0, strPtr("mem://captcha"), true, []byte(nil), now.Add(time.Second))

	mock.ExpectQuery(flexibleSQLMatcher(`SELECT job_id, step_name, status`)).
		WithArgs(jobID).
		WillReturnRows(rows)

	history, err := store.History(context.Background(), jobID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, schemas.JobStatusRunning, history[0].Status)
	assert.True(t, history[1].NeedsCaptcha)
	assert.Equal(t, "mem://captcha", history[1].CaptchaImage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateChallengeSupersedesThenInserts(t *testing.T) {
	store, mock := newMockedStore(t)
	jobID := uuid.New()

	// Order matters: the old unsolved record is retired before the new row
	// lands, keeping at most one live challenge per job.
	mock.ExpectExec(flexibleSQLMatcher(`UPDATE captcha_challenges SET superseded = true WHERE job_id = $1 AND solved = false`)).
		WithArgs(jobID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(flexibleSQLMatcher(`INSERT INTO captcha_challenges`)).
		WithArgs(pgxmock.AnyArg(), jobID, "mem://captcha/1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	challenge, err := store.CreateChallenge(context.Background(), jobID, "mem://captcha/1")
	require.NoError(t, err)
	assert.Equal(t, jobID, challenge.JobID)
	assert.NotEqual(t, uuid.Nil, challenge.ID)
	assert.True(t, challenge.ExpiresAt.After(challenge.CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnsolvedChallengeNilOnNoRows(t *testing.T) {
	store, mock := newMockedStore(t)
	jobID := uuid.New()

	mock.ExpectQuery(flexibleSQLMatcher(`SELECT id, job_id, image_url`)).
		WithArgs(jobID).
		WillReturnError(pgx.ErrNoRows)

	challenge, err := store.UnsolvedChallenge(context.Background(), jobID)
	require.NoError(t, err)
	assert.Nil(t, challenge)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateChallengeImageRequiresALiveChallenge(t *testing.T) {
	store, mock := newMockedStore(t)
	jobID := uuid.New()

	mock.ExpectExec(flexibleSQLMatcher(`UPDATE captcha_challenges`)).
		WithArgs(jobID, "mem://captcha/2", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdateChallengeImage(context.Background(), jobID, "mem://captcha/2")
	assert.Error(t, err, "refreshing without a live challenge is a programming error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRunningRefusesTerminalJobs(t *testing.T) {
	store, mock := newMockedStore(t)
	jobID := uuid.New()

	// The guard clause matched no row: the job is already terminal.
	mock.ExpectExec(flexibleSQLMatcher(`UPDATE jobs SET status = 'running'`)).
		WithArgs(jobID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.MarkRunning(context.Background(), jobID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monotonic")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailedIsIdempotentOnTerminalJobs(t *testing.T) {
	store, mock := newMockedStore(t)
	jobID := uuid.New()

	mock.ExpectExec(flexibleSQLMatcher(`UPDATE jobs SET status = 'failed'`)).
		WithArgs(jobID, "browser crashed").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	// Failure reporting runs on teardown paths; it must not add errors.
	err := store.MarkFailed(context.Background(), jobID, "browser crashed")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkCompletedRecordsApplicationID(t *testing.T) {
	store, mock := newMockedStore(t)
	jobID := uuid.New()

	mock.ExpectExec(flexibleSQLMatcher(`UPDATE jobs SET status = 'completed'`)).
		WithArgs(jobID, strPtrMatcher("AA00EXAMPLE")).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.MarkCompleted(context.Background(), jobID, schemas.TerminalResult{
		Status:        schemas.JobStatusCompleted,
		ApplicationID: "AA00EXAMPLE",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateJobIsIdempotent(t *testing.T) {
	store, mock := newMockedStore(t)
	job := &schemas.Job{ID: uuid.New(), UserID: "user-1", Embassy: "London"}

	mock.ExpectExec(flexibleSQLMatcher(`INSERT INTO jobs`)).
		WithArgs(job.ID, "user-1", "pending", "London", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0)) // conflict swallowed

	assert.NoError(t, store.CreateJob(context.Background(), job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaPropagatesFailures(t *testing.T) {
	store, mock := newMockedStore(t)

	boom := errors.New("permission denied")
	mock.ExpectExec(flexibleSQLMatcher(`CREATE TABLE IF NOT EXISTS jobs`)).
		WillReturnError(boom)

	err := store.EnsureSchema(context.Background())
	assert.ErrorIs(t, err, boom)
}

// -- helpers --

func strPtr(s string) *string { return &s }

// strPtrMatcher matches a *string argument by value.
type strPtrMatcher string

func (m strPtrMatcher) Match(v any) bool {
	p, ok := v.(*string)
	return ok && p != nil && *p == string(m)
}
