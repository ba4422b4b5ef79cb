package engine

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/applyflow/ds160-runner/api/schemas"
)

// Selectors for the ASP.NET validation summary the CEAC pages render their
// server-side errors into.
const (
	validationSummarySelector     = "div.validation-summary-errors, div[id*='ValidationSummary']"
	validationSummaryItemSelector = "div.validation-summary-errors li, div[id*='ValidationSummary'] li"
)

// OutcomeKind classifies the page reached after an advance interaction.
type OutcomeKind int

const (
	OutcomeAccepted OutcomeKind = iota
	OutcomeRejected
	OutcomeSameStep
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeSameStep:
		return "same_step"
	default:
		return "unknown"
	}
}

// ValidationOutcome is the gate's transient classification. Errors carries
// the server's messages verbatim when any were found.
type ValidationOutcome struct {
	Kind   OutcomeKind
	Errors []string
}

// Rejected reports whether the outcome blocks advancing. Still sitting on
// the same step counts: the remote UI sometimes fails silently.
func (o ValidationOutcome) Rejected() bool {
	return o.Kind != OutcomeAccepted
}

// ValidationGate inspects the page after a step's advance interaction and
// decides accepted / rejected / still-on-same-step. It captures error text
// only; diagnostics (screenshots) are the caller's duty, since the page
// state is the only evidence available and the caller controls artifact
// storage.
type ValidationGate struct {
	driver schemas.BrowserDriver
	logger *zap.Logger
}

// NewValidationGate wires the gate to a job's session.
func NewValidationGate(driver schemas.BrowserDriver, logger *zap.Logger) *ValidationGate {
	return &ValidationGate{
		driver: driver,
		logger: logger.With(zap.String("component", "validation_gate")),
	}
}

// CheckAfterAdvance runs the checks in fixed order: step-specific known
// error phrases, then the generic validation summary, then the
// did-we-actually-leave check against the step's own URL fragment and marker
// element. The first positive match wins; no signal at all is acceptance.
func (g *ValidationGate) CheckAfterAdvance(ctx context.Context, step schemas.StepDefinition) ValidationOutcome {
	// (a) Step-specific known error set.
	if len(step.Markers.KnownErrors) > 0 {
		if matched := g.matchKnownErrors(ctx, step); len(matched) > 0 {
			g.logger.Warn("Step-specific validation errors present",
				zap.Int("step", step.Number), zap.Strings("errors", matched))
			return ValidationOutcome{Kind: OutcomeRejected, Errors: matched}
		}
	}

	// (b) Generic validation summary.
	if errs := g.summaryErrors(ctx); len(errs) > 0 {
		g.logger.Warn("Validation summary errors present",
			zap.Int("step", step.Number), zap.Strings("errors", errs))
		return ValidationOutcome{Kind: OutcomeRejected, Errors: errs}
	}

	// (c) Conservative same-step check. No explicit error text, but the
	// browser never left the step's page.
	if g.stillOnStep(ctx, step) {
		g.logger.Warn("Advance interaction left the browser on the same step",
			zap.Int("step", step.Number), zap.String("fragment", step.Markers.URLFragment))
		return ValidationOutcome{Kind: OutcomeSameStep}
	}

	return ValidationOutcome{Kind: OutcomeAccepted}
}

func (g *ValidationGate) matchKnownErrors(ctx context.Context, step schemas.StepDefinition) []string {
	pageText, err := g.driver.Text(ctx, "body")
	if err != nil {
		g.logger.Debug("Could not read page text for known-error check", zap.Error(err))
		return nil
	}
	var matched []string
	for _, phrase := range step.Markers.KnownErrors {
		if strings.Contains(pageText, phrase) {
			matched = append(matched, phrase)
		}
	}
	return matched
}

func (g *ValidationGate) summaryErrors(ctx context.Context) []string {
	visible, err := g.driver.WaitVisible(ctx, validationSummarySelector, 500*time.Millisecond)
	if err != nil || !visible {
		return nil
	}
	items, err := g.driver.TextAll(ctx, validationSummaryItemSelector)
	if err != nil {
		g.logger.Debug("Validation summary visible but items unreadable", zap.Error(err))
		// A visible summary with unreadable items is still a rejection
		// signal; report it without the text.
		return []string{"validation summary present"}
	}
	var errs []string
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			errs = append(errs, trimmed)
		}
	}
	if len(errs) == 0 {
		return []string{"validation summary present"}
	}
	return errs
}

func (g *ValidationGate) stillOnStep(ctx context.Context, step schemas.StepDefinition) bool {
	if step.Markers.URLFragment != "" {
		current, err := g.driver.CurrentURL(ctx)
		if err == nil && strings.Contains(current, step.Markers.URLFragment) {
			return true
		}
	}
	if step.Markers.MarkerSelector != "" {
		visible, err := g.driver.WaitVisible(ctx, step.Markers.MarkerSelector, 500*time.Millisecond)
		if err == nil && visible {
			return true
		}
	}
	return false
}
