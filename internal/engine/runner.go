package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/applyflow/ds160-runner/api/schemas"
	"github.com/applyflow/ds160-runner/internal/config"
)

// DriverFactory opens a fresh browser session. Each job gets its own; the
// factory is injected so tests can hand back fakes.
type DriverFactory func(ctx context.Context) (schemas.BrowserDriver, error)

// JobRunner assembles a full engine per job: a fresh browser session, an
// orchestrator wired to the shared stores, and guaranteed session teardown.
type JobRunner struct {
	newDriver DriverFactory
	progress  schemas.ProgressStore
	artifacts schemas.ArtifactStore
	status    schemas.JobStatusSink
	steps     []schemas.StepDefinition
	captcha   schemas.CaptchaSpec
	cfg       *config.Config
	logger    *zap.Logger
}

// NewJobRunner wires the per-job factory.
func NewJobRunner(
	newDriver DriverFactory,
	progress schemas.ProgressStore,
	artifacts schemas.ArtifactStore,
	status schemas.JobStatusSink,
	steps []schemas.StepDefinition,
	captcha schemas.CaptchaSpec,
	cfg *config.Config,
	logger *zap.Logger,
) *JobRunner {
	return &JobRunner{
		newDriver: newDriver,
		progress:  progress,
		artifacts: artifacts,
		status:    status,
		steps:     steps,
		captcha:   captcha,
		cfg:       cfg,
		logger:    logger,
	}
}

// RunJob drives one job end-to-end and always tears the session down.
func (r *JobRunner) RunJob(ctx context.Context, job *schemas.Job, formData schemas.FormData) (*schemas.TerminalResult, error) {
	driver, err := r.newDriver(ctx)
	if err != nil {
		// No session means no diagnostics either; the status sink still
		// records the terminal state.
		if serr := r.status.MarkFailed(context.WithoutCancel(ctx), job.ID, err.Error()); serr != nil {
			r.logger.Warn("Could not mark session-less job failed", zap.Error(serr))
		}
		return nil, fmt.Errorf("opening browser session: %w", err)
	}
	defer func() {
		if cerr := driver.Close(context.WithoutCancel(ctx)); cerr != nil {
			r.logger.Warn("Browser session close failed", zap.Error(cerr))
		}
	}()

	orchestrator, err := NewStepOrchestrator(Deps{
		Driver:    driver,
		Progress:  r.progress,
		Artifacts: r.artifacts,
		Status:    r.status,
		Steps:     r.steps,
		Captcha:   r.captcha,
		StartURL:  r.cfg.Browser.StartURL,
	}, r.cfg, r.logger)
	if err != nil {
		return nil, err
	}

	return orchestrator.Run(ctx, job, formData)
}
