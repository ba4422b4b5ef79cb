package schemas

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BrowserDriver is the injected browser automation capability. All calls are
// synchronous against a live browser and may fail with a timeout or
// element-not-found fault, which callers classify rather than retry here.
type BrowserDriver interface {
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until the selector is visible or the timeout
	// elapses; it reports visibility rather than erroring on a miss.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	Fill(ctx context.Context, selector, text string) error
	SelectOption(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	SetChecked(ctx context.Context, selector string, checked bool) error
	// WaitNetworkIdle blocks until no request has been in flight for quiet,
	// or until timeout. Timeout is reported as an error; callers decide
	// whether that is fatal.
	WaitNetworkIdle(ctx context.Context, quiet, timeout time.Duration) error
	Screenshot(ctx context.Context) ([]byte, error)
	ScreenshotElement(ctx context.Context, selector string) ([]byte, error)
	CurrentURL(ctx context.Context) (string, error)
	Text(ctx context.Context, selector string) (string, error)
	TextAll(ctx context.Context, selector string) ([]string, error)
	Close(ctx context.Context) error
}

// ProgressStore is the external, append-only progress and challenge store.
// The human side writes solutions and refresh requests into it; the engine
// only ever polls.
type ProgressStore interface {
	Append(ctx context.Context, update ProgressUpdate) error
	Latest(ctx context.Context, jobID uuid.UUID) (*ProgressUpdate, error)
	History(ctx context.Context, jobID uuid.UUID) ([]ProgressUpdate, error)
	UnsolvedChallenge(ctx context.Context, jobID uuid.UUID) (*CaptchaChallenge, error)
	SolvedChallenge(ctx context.Context, jobID uuid.UUID) (*CaptchaChallenge, error)
	CreateChallenge(ctx context.Context, jobID uuid.UUID, imageRef string) (*CaptchaChallenge, error)
	UpdateChallengeImage(ctx context.Context, jobID uuid.UUID, imageRef string) error
}

// ArtifactStore persists diagnostic blobs and returns a public reference.
type ArtifactStore interface {
	Store(ctx context.Context, data []byte, meta ArtifactMeta) (*Artifact, error)
}

// JobStatusSink receives terminal and lifecycle status transitions.
type JobStatusSink interface {
	MarkRunning(ctx context.Context, jobID uuid.UUID) error
	MarkFailed(ctx context.Context, jobID uuid.UUID, reason string) error
	MarkCompleted(ctx context.Context, jobID uuid.UUID, result TerminalResult) error
}
