package engine

import "errors"

// Fault taxonomy for the automation pipeline. Call sites wrap these with
// fmt.Errorf("%w") so Classify can grade any error in the chain.
var (
	// ErrElementNotFound: a locator never became visible within its timeout.
	ErrElementNotFound = errors.New("element not found")
	// ErrNavigationTimeout: a page failed to load in time.
	ErrNavigationTimeout = errors.New("navigation timeout")
	// ErrPostbackAmbiguous: the stability signal never fired. Never fatal.
	ErrPostbackAmbiguous = errors.New("postback stability ambiguous")
	// ErrValidationRejected: the server reported form errors after advance.
	ErrValidationRejected = errors.New("validation rejected")
	// ErrCaptchaTimeout: no solution arrived inside the resolution window.
	ErrCaptchaTimeout = errors.New("captcha timeout")
	// ErrCaptchaRejected: the rejection cap was hit before an accepted solve.
	ErrCaptchaRejected = errors.New("captcha rejected repeatedly")
)

// Severity grades a fault by how far it must propagate.
type Severity int

const (
	// SeverityFieldLocal faults are swallowed and logged; the step proceeds
	// best-effort. One optional field missing must not sink a long form.
	SeverityFieldLocal Severity = iota
	// SeverityStepFatal faults mean the step itself did not progress; the
	// job fails with diagnostics captured.
	SeverityStepFatal
	// SeverityJobFatal faults end the job and are distinguishable from
	// validation failure so callers can offer a resubmit UX.
	SeverityJobFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityFieldLocal:
		return "field_local"
	case SeverityStepFatal:
		return "step_fatal"
	case SeverityJobFatal:
		return "job_fatal"
	default:
		return "unknown"
	}
}

// Classify maps an error to its propagation severity. The local-vs-fatal
// distinction is a named function here rather than ad hoc try/catch at each
// call site, so it can be tested directly.
func Classify(err error) Severity {
	switch {
	case errors.Is(err, ErrCaptchaTimeout), errors.Is(err, ErrCaptchaRejected):
		return SeverityJobFatal
	case errors.Is(err, ErrValidationRejected), errors.Is(err, ErrNavigationTimeout):
		return SeverityStepFatal
	case errors.Is(err, ErrElementNotFound), errors.Is(err, ErrPostbackAmbiguous):
		return SeverityFieldLocal
	default:
		// Unknown faults are treated as step-fatal: the page state can no
		// longer be trusted.
		return SeverityStepFatal
	}
}
