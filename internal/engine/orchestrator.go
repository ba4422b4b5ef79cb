package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/applyflow/ds160-runner/api/schemas"
	"github.com/applyflow/ds160-runner/internal/config"
)

// Progress percentages: steps share the band above the baseline; 100 is
// reserved for completion.
const (
	progressBaseline = 5
	progressCeiling  = 95
)

// StepHook is bespoke per-step logic, run after the step's postback has
// stabilized and validation accepted it. The few steps that need one (the
// application-ID confirmation page) register in a lookup table keyed by step
// number; everything else is pure catalog data.
type StepHook func(ctx context.Context, o *StepOrchestrator, job *schemas.Job, step schemas.StepDefinition) error

// StepOrchestrator is the top-level state machine. It owns one browser
// session for one job and runs the 17 steps strictly in order; concurrency
// exists only across jobs, never inside one.
type StepOrchestrator struct {
	driver    schemas.BrowserDriver
	progress  schemas.ProgressStore
	artifacts schemas.ArtifactStore
	status    schemas.JobStatusSink

	resolver *FieldResolver
	applier  *FieldApplier
	expander *ConditionalFieldExpander
	sync     *PostbackSynchronizer
	gate     *ValidationGate
	captcha  *CaptchaResolver

	steps    []schemas.StepDefinition
	hooks    map[int]StepHook
	startURL string
	engCfg   config.EngineConfig
	logger   *zap.Logger

	// applicationID is captured by the confirmation-page hook and carried
	// into the terminal result.
	applicationID string
}

// Deps bundles the external collaborators a job run needs. Everything is
// injected so the orchestrator is testable without a live browser, database,
// or queue.
type Deps struct {
	Driver    schemas.BrowserDriver
	Progress  schemas.ProgressStore
	Artifacts schemas.ArtifactStore
	Status    schemas.JobStatusSink
	Steps     []schemas.StepDefinition
	Captcha   schemas.CaptchaSpec
	StartURL  string
}

// NewStepOrchestrator assembles the engine for one job run.
func NewStepOrchestrator(deps Deps, cfg *config.Config, logger *zap.Logger) (*StepOrchestrator, error) {
	if deps.Driver == nil || deps.Progress == nil || deps.Artifacts == nil || deps.Status == nil {
		return nil, fmt.Errorf("cannot build orchestrator with nil collaborators")
	}
	if len(deps.Steps) == 0 {
		return nil, fmt.Errorf("step catalog is empty")
	}

	log := logger.With(zap.String("component", "orchestrator"))
	sync := NewPostbackSynchronizer(deps.Driver, cfg.Postback, logger)

	o := &StepOrchestrator{
		driver:    deps.Driver,
		progress:  deps.Progress,
		artifacts: deps.Artifacts,
		status:    deps.Status,
		resolver:  NewFieldResolver(logger),
		applier:   NewFieldApplier(deps.Driver, sync, cfg.Engine.FieldTimeout, logger),
		expander:  NewConditionalFieldExpander(logger),
		sync:      sync,
		gate:      NewValidationGate(deps.Driver, logger),
		captcha:   NewCaptchaResolver(deps.Driver, deps.Progress, deps.Artifacts, sync, deps.Captcha, cfg.Captcha, logger),
		steps:     deps.Steps,
		hooks:     map[int]StepHook{},
		startURL:  deps.StartURL,
		engCfg:    cfg.Engine,
		logger:    log,
	}
	o.registerHooks()
	return o, nil
}

// registerHooks binds the strategy table for steps with bespoke behavior.
func (o *StepOrchestrator) registerHooks() {
	for _, step := range o.steps {
		if step.Markers.MarkerSelector == applicationIDSelector {
			o.hooks[step.Number] = captureApplicationID
		}
	}
}

// applicationIDSelector marks the Get Started page, which displays the
// barcode the applicant needs to resume or print the application.
const applicationIDSelector = "#lblBarcode"

// captureApplicationID lifts the freshly issued application ID off the page
// and stashes it for the terminal result.
func captureApplicationID(ctx context.Context, o *StepOrchestrator, job *schemas.Job, step schemas.StepDefinition) error {
	id, err := o.driver.Text(ctx, applicationIDSelector)
	if err != nil {
		// The run can finish without it; the confirmation email carries it too.
		o.logger.Warn("Could not capture application ID", zap.Error(err))
		return nil
	}
	o.applicationID = id
	return o.report(ctx, job, step.Name, schemas.JobStatusRunning, "Application ID issued",
		o.percentFor(step.Number), map[string]any{"application_id": id})
}

// Run drives the job end-to-end and returns its terminal result. Any
// uncaught fault, including panics out of the driver, is converted exactly
// once into a failure report with a best-effort screenshot before being
// re-raised; the job is never left in running on exit.
func (o *StepOrchestrator) Run(ctx context.Context, job *schemas.Job, formData schemas.FormData) (result *schemas.TerminalResult, err error) {
	log := o.logger.With(zap.String("job_id", job.ID.String()))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
		if err != nil {
			o.failJob(job, log, err)
		}
	}()

	if err = o.status.MarkRunning(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("marking job running: %w", err)
	}
	job.Status = schemas.JobStatusRunning

	log.Info("Starting job run", zap.Int("steps", len(o.steps)), zap.String("embassy", job.Embassy))

	if err = o.driver.Navigate(ctx, o.startURL); err != nil {
		return nil, fmt.Errorf("opening application site: %w", err)
	}
	o.sync.AwaitStable(ctx, "initial navigation")

	for _, step := range o.steps {
		if err = o.runStep(ctx, job, step, formData); err != nil {
			return nil, err
		}
	}

	result = &schemas.TerminalResult{
		Status:        schemas.JobStatusCompleted,
		ApplicationID: o.applicationID,
	}
	if err = o.report(ctx, job, "completed", schemas.JobStatusCompleted, "Application submitted", 100, nil); err != nil {
		return nil, err
	}
	if err = o.status.MarkCompleted(ctx, job.ID, *result); err != nil {
		return nil, fmt.Errorf("marking job completed: %w", err)
	}
	job.Status = schemas.JobStatusCompleted
	log.Info("Job completed", zap.String("application_id", o.applicationID))
	return result, nil
}

// runStep executes one step of the shared loop: report, fill, expand
// conditionals, captcha checkpoint, advance, stabilize, validate, hook.
func (o *StepOrchestrator) runStep(ctx context.Context, job *schemas.Job, step schemas.StepDefinition, formData schemas.FormData) error {
	log := o.logger.With(zap.String("job_id", job.ID.String()), zap.Int("step", step.Number), zap.String("name", step.Name))
	log.Info("Running step")

	if err := o.report(ctx, job, step.Name, schemas.JobStatusRunning, "Filling "+step.Name, o.percentFor(step.Number), nil); err != nil {
		return err
	}

	plan := o.resolver.ResolveFill(step, formData)
	applied, err := o.applier.Apply(ctx, plan)
	if err != nil {
		return fmt.Errorf("step %d (%s): %w", step.Number, step.Name, err)
	}

	// Any applied value matching its field's trigger owes follow-up fills.
	for _, item := range applied {
		extras := o.expander.Expand(item.Mapping, item.Value, formData)
		for _, extra := range extras {
			// The reveal itself is asynchronous; give the field a bounded
			// window to materialize before filling it. Split date fields
			// have no parent control, so the first segment stands in.
			waitSel := extra.Mapping.Selector
			if extra.Mapping.Type == schemas.FieldDateSplit && len(extra.Mapping.Split) > 0 {
				waitSel = extra.Mapping.Split[0].Selector
			}
			visible, werr := o.driver.WaitVisible(ctx, waitSel, o.engCfg.FieldRevealTimeout)
			if werr != nil || !visible {
				log.Warn("Revealed field never appeared, skipping",
					zap.String("key", extra.Mapping.Key),
					zap.String("selector", waitSel),
					zap.Error(werr))
				continue
			}
			if aerr := o.applier.ApplyOne(ctx, extra); aerr != nil {
				log.Warn("Revealed field fill failed, continuing best-effort",
					zap.String("key", extra.Mapping.Key), zap.Error(aerr))
			}
		}
	}

	if step.CaptchaCheckpoint {
		solution, cerr := o.captcha.Resolve(ctx, job, step.Name)
		if cerr != nil {
			return fmt.Errorf("step %d (%s): %w", step.Number, step.Name, cerr)
		}
		if solution != nil {
			// The captcha advance doubles as the step advance on checkpoint
			// pages; validation below still applies.
			job.Status = schemas.JobStatusRunning
			return o.finishStep(ctx, job, step)
		}
	}

	if err := o.driver.Click(ctx, step.AdvanceSelector); err != nil {
		return fmt.Errorf("step %d (%s) advance: %w", step.Number, step.Name, err)
	}
	o.sync.AwaitStable(ctx, fmt.Sprintf("advance step %d", step.Number))

	return o.finishStep(ctx, job, step)
}

// finishStep runs the validation gate and the step's hook, if any.
func (o *StepOrchestrator) finishStep(ctx context.Context, job *schemas.Job, step schemas.StepDefinition) error {
	outcome := o.gate.CheckAfterAdvance(ctx, step)
	if outcome.Rejected() {
		o.captureDiagnostics(ctx, job, step, outcome)
		return fmt.Errorf("step %d (%s) %s: %v: %w",
			step.Number, step.Name, outcome.Kind, outcome.Errors, ErrValidationRejected)
	}

	if hook, ok := o.hooks[step.Number]; ok {
		if err := hook(ctx, o, job, step); err != nil {
			return fmt.Errorf("step %d (%s) hook: %w", step.Number, step.Name, err)
		}
	}
	return nil
}

// captureDiagnostics stores a screenshot and a rejection progress record.
// The page state is the only diagnostic available, so this happens before
// any further interaction. Exactly one screenshot per rejection.
func (o *StepOrchestrator) captureDiagnostics(ctx context.Context, job *schemas.Job, step schemas.StepDefinition, outcome ValidationOutcome) {
	var imageURL string
	if data, err := o.driver.Screenshot(ctx); err == nil {
		artifact, serr := o.artifacts.Store(ctx, data, schemas.ArtifactMeta{
			JobID:    job.ID,
			Kind:     "rejection",
			Filename: fmt.Sprintf("step-%d-rejected.png", step.Number),
			MimeType: "image/png",
		})
		if serr == nil {
			imageURL = artifact.PublicURL
		} else {
			o.logger.Warn("Could not store rejection screenshot", zap.Error(serr))
		}
	} else {
		o.logger.Warn("Could not capture rejection screenshot", zap.Error(err))
	}

	update := schemas.ProgressUpdate{
		JobID:    job.ID,
		StepName: step.Name,
		Status:   schemas.JobStatusFailed,
		Message:  fmt.Sprintf("Step rejected (%s)", outcome.Kind),
		Percent:  o.percentFor(step.Number),
		Metadata: map[string]any{
			"errors":     outcome.Errors,
			"screenshot": imageURL,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := o.progress.Append(ctx, update); err != nil {
		o.logger.Warn("Could not append rejection update", zap.Error(err))
	}
}

// failJob is the single terminal failure path. It runs on a background
// context: the job context may already be cancelled, and the failure report
// must still land.
func (o *StepOrchestrator) failJob(job *schemas.Job, log *zap.Logger, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	log.Error("Job failed", zap.Error(cause), zap.String("severity", Classify(cause).String()))

	metadata := map[string]any{"severity": Classify(cause).String()}
	if data, err := o.driver.Screenshot(ctx); err == nil {
		if artifact, serr := o.artifacts.Store(ctx, data, schemas.ArtifactMeta{
			JobID:    job.ID,
			Kind:     "failure",
			Filename: "failure.png",
			MimeType: "image/png",
		}); serr == nil {
			metadata["screenshot"] = artifact.PublicURL
		}
	}

	update := schemas.ProgressUpdate{
		JobID:     job.ID,
		StepName:  "failed",
		Status:    schemas.JobStatusFailed,
		Message:   cause.Error(),
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.progress.Append(ctx, update); err != nil {
		log.Warn("Could not append failure update", zap.Error(err))
	}
	if err := o.status.MarkFailed(ctx, job.ID, cause.Error()); err != nil {
		log.Warn("Could not mark job failed", zap.Error(err))
	}
	job.Status = schemas.JobStatusFailed
}

// report appends a progress record.
func (o *StepOrchestrator) report(ctx context.Context, job *schemas.Job, stepName string, status schemas.JobStatus, message string, percent int, metadata map[string]any) error {
	update := schemas.ProgressUpdate{
		JobID:     job.ID,
		StepName:  stepName,
		Status:    status,
		Message:   message,
		Percent:   percent,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.progress.Append(ctx, update); err != nil {
		return fmt.Errorf("appending progress update: %w", err)
	}
	return nil
}

// percentFor spreads the steps evenly across the progress band.
func (o *StepOrchestrator) percentFor(stepNumber int) int {
	span := progressCeiling - progressBaseline
	return progressBaseline + span*stepNumber/len(o.steps)
}
