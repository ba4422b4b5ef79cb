package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/applyflow/ds160-runner/api/schemas"
	"github.com/applyflow/ds160-runner/internal/config"
)

// captchaState names the resolver's position in its state machine. Kept as
// an explicit value for logging; transitions happen inside Resolve.
type captchaState string

const (
	stateNoChallenge       captchaState = "no_challenge"
	stateChallengeDetected captchaState = "challenge_detected"
	stateAwaitingSolution  captchaState = "awaiting_solution"
	stateValidating        captchaState = "validating"
	stateAccepted          captchaState = "accepted"
	stateTimedOut          captchaState = "timed_out"
)

// CaptchaResolver runs the human-in-the-loop handshake: detect the challenge
// image, publish it, poll the external store for a solution, submit it, and
// classify the server's reaction. The engine writes challenges; the human
// side writes solutions and refresh requests; each side only reads the
// other's field.
type CaptchaResolver struct {
	driver    schemas.BrowserDriver
	progress  schemas.ProgressStore
	artifacts schemas.ArtifactStore
	sync      *PostbackSynchronizer
	spec      schemas.CaptchaSpec
	cfg       config.CaptchaConfig
	logger    *zap.Logger
}

// NewCaptchaResolver wires the resolver against one job's session.
func NewCaptchaResolver(
	driver schemas.BrowserDriver,
	progress schemas.ProgressStore,
	artifacts schemas.ArtifactStore,
	sync *PostbackSynchronizer,
	spec schemas.CaptchaSpec,
	cfg config.CaptchaConfig,
	logger *zap.Logger,
) *CaptchaResolver {
	return &CaptchaResolver{
		driver:    driver,
		progress:  progress,
		artifacts: artifacts,
		sync:      sync,
		spec:      spec,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "captcha_resolver")),
	}
}

// Resolve drives the challenge to a terminal state. It returns the accepted
// solution text, or nil with ErrCaptchaTimeout / ErrCaptchaRejected when the
// window elapses or the rejection cap is hit; both are fatal for the job, and
// distinguishable from validation failure so callers can offer a resubmit.
// A page with no visible challenge resolves immediately with no solution.
func (r *CaptchaResolver) Resolve(ctx context.Context, job *schemas.Job, stepName string) (*string, error) {
	visible, err := r.driver.WaitVisible(ctx, r.spec.ImageSelector, 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("probing for challenge image: %w", err)
	}
	if !visible {
		r.logger.Debug("No challenge present", zap.String("state", string(stateNoChallenge)))
		return nil, nil
	}

	challenge, err := r.publishChallenge(ctx, job, stepName)
	if err != nil {
		return nil, err
	}

	rejections := 0
	for {
		solution, err := r.awaitSolution(ctx, job, challenge)
		if err != nil {
			return nil, err
		}

		accepted, err := r.validateSolution(ctx, solution)
		if err != nil {
			return nil, err
		}
		if accepted {
			r.logger.Info("Captcha accepted", zap.String("state", string(stateAccepted)))
			return &solution, nil
		}

		rejections++
		r.logger.Warn("Captcha rejected, site issued a fresh challenge",
			zap.Int("rejections", rejections), zap.Int("cap", r.cfg.RejectionCap))
		if rejections >= r.cfg.RejectionCap {
			return nil, fmt.Errorf("%d rejections: %w", rejections, ErrCaptchaRejected)
		}

		// The site auto-issues a new image on rejection. Re-capture it,
		// supersede the old record, and go around with a fresh clock.
		challenge, err = r.publishChallenge(ctx, job, stepName)
		if err != nil {
			return nil, err
		}
	}
}

// publishChallenge captures the on-page image, stores it as an artifact, and
// records a new unsolved challenge (superseding any previous one). It also
// appends a needs_captcha progress update carrying the image reference.
func (r *CaptchaResolver) publishChallenge(ctx context.Context, job *schemas.Job, stepName string) (*schemas.CaptchaChallenge, error) {
	imageRef, err := r.captureImage(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	challenge, err := r.progress.CreateChallenge(ctx, job.ID, imageRef)
	if err != nil {
		return nil, fmt.Errorf("recording challenge: %w", err)
	}

	update := schemas.ProgressUpdate{
		JobID:        job.ID,
		StepName:     stepName,
		Status:       schemas.JobStatusWaitingForCaptcha,
		Message:      "Waiting for captcha solution",
		CaptchaImage: imageRef,
		NeedsCaptcha: true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.progress.Append(ctx, update); err != nil {
		return nil, fmt.Errorf("publishing challenge update: %w", err)
	}

	r.logger.Info("Challenge published",
		zap.String("state", string(stateChallengeDetected)),
		zap.String("challenge_id", challenge.ID.String()),
		zap.String("image", imageRef))
	return challenge, nil
}

// captureImage screenshots the challenge element and stores the bytes.
func (r *CaptchaResolver) captureImage(ctx context.Context, jobID uuid.UUID) (string, error) {
	data, err := r.driver.ScreenshotElement(ctx, r.spec.ImageSelector)
	if err != nil {
		return "", fmt.Errorf("capturing challenge image: %w", err)
	}
	artifact, err := r.artifacts.Store(ctx, data, schemas.ArtifactMeta{
		JobID:    jobID,
		Kind:     "captcha",
		Filename: fmt.Sprintf("captcha-%d.png", time.Now().UnixMilli()),
		MimeType: "image/png",
	})
	if err != nil {
		return "", fmt.Errorf("storing challenge image: %w", err)
	}
	return artifact.PublicURL, nil
}

// awaitSolution is the AwaitingSolution poll loop. Each tick it honors
// refresh requests (re-capture, update in place, reset the clock), watches
// for an identity change on the unsolved record (human refreshed it
// independently, so reset the clock), and returns as soon as a solved record
// with non-empty text exists. A deadline lapse maps to ErrCaptchaTimeout.
func (r *CaptchaResolver) awaitSolution(ctx context.Context, job *schemas.Job, challenge *schemas.CaptchaChallenge) (string, error) {
	r.logger.Info("Awaiting solution",
		zap.String("state", string(stateAwaitingSolution)),
		zap.Duration("timeout", r.cfg.Timeout),
		zap.Duration("interval", r.cfg.PollInterval))

	lastID := challenge.ID
	var solution string

	poller := Poller{Interval: r.cfg.PollInterval, Timeout: r.cfg.Timeout}
	err := poller.Run(ctx, func(ctx context.Context) (PollVerdict, error) {
		unsolved, err := r.progress.UnsolvedChallenge(ctx, job.ID)
		if err != nil {
			return PollContinue, fmt.Errorf("polling unsolved challenge: %w", err)
		}

		if unsolved != nil && unsolved.RefreshRequested {
			imageRef, err := r.captureImage(ctx, job.ID)
			if err != nil {
				return PollContinue, err
			}
			if err := r.progress.UpdateChallengeImage(ctx, job.ID, imageRef); err != nil {
				return PollContinue, fmt.Errorf("refreshing challenge image: %w", err)
			}
			r.logger.Info("Refresh request honored, timer reset", zap.String("image", imageRef))
			return PollReset, nil
		}

		solved, err := r.progress.SolvedChallenge(ctx, job.ID)
		if err != nil {
			return PollContinue, fmt.Errorf("polling solved challenge: %w", err)
		}
		if solved != nil && strings.TrimSpace(solved.Solution) != "" {
			if solved.ID == lastID {
				solution = solved.Solution
				return PollDone, nil
			}
			// With no unsolved record outstanding, this solved record is
			// the job's current challenge: the human superseded and solved
			// it within one poll gap. Only solutions for challenges an
			// unsolved successor has displaced are stale.
			if unsolved == nil {
				lastID = solved.ID
				solution = solved.Solution
				return PollDone, nil
			}
			r.logger.Debug("Ignoring solution for superseded challenge",
				zap.String("solved_id", solved.ID.String()),
				zap.String("current_id", lastID.String()))
		}

		if unsolved != nil && unsolved.ID != lastID {
			r.logger.Info("Unsolved challenge identity changed, timer reset",
				zap.String("previous", lastID.String()),
				zap.String("current", unsolved.ID.String()))
			lastID = unsolved.ID
			return PollReset, nil
		}

		return PollContinue, nil
	})

	if err != nil {
		if err == ErrPollTimeout {
			r.logger.Warn("Captcha resolution window elapsed", zap.String("state", string(stateTimedOut)))
			return "", ErrCaptchaTimeout
		}
		return "", err
	}
	return solution, nil
}

// validateSolution types the answer, advances, waits out the postback, and
// classifies the server's reaction. Ambiguous outcomes count as accepted
// only when the challenge input is no longer present.
func (r *CaptchaResolver) validateSolution(ctx context.Context, solution string) (bool, error) {
	r.logger.Info("Submitting solution", zap.String("state", string(stateValidating)))

	if err := r.driver.Fill(ctx, r.spec.InputSelector, solution); err != nil {
		return false, fmt.Errorf("typing solution: %w", err)
	}
	if err := r.driver.Click(ctx, r.spec.AdvanceSelector); err != nil {
		return false, fmt.Errorf("advancing past challenge: %w", err)
	}
	r.sync.AwaitStable(ctx, "captcha submit")

	// Clearly accepted: we landed on the expected next page.
	if r.spec.NextURLFragment != "" {
		current, err := r.driver.CurrentURL(ctx)
		if err == nil && strings.Contains(current, r.spec.NextURLFragment) {
			return true, nil
		}
	}

	// Clearly rejected: the captcha-specific error phrase is on the page.
	if r.spec.ErrorPhrase != "" {
		pageText, err := r.driver.Text(ctx, "body")
		if err == nil && strings.Contains(pageText, r.spec.ErrorPhrase) {
			return false, nil
		}
	}

	// Ambiguous. Accept only if the challenge input itself is gone.
	inputVisible, err := r.driver.WaitVisible(ctx, r.spec.InputSelector, time.Second)
	if err != nil {
		return false, fmt.Errorf("probing challenge input after submit: %w", err)
	}
	return !inputVisible, nil
}
