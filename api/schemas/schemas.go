// Package schemas holds the shared data model and the collaborator contracts
// for the DS-160 automation engine. Interfaces live here, at the API boundary,
// so internal packages can depend on them without import cycles.
package schemas

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a submission job. Transitions are
// monotonic: pending -> running -> (waiting_for_captcha <-> running)* ->
// {completed | failed | cancelled}. Terminal states are never left.
type JobStatus string

const (
	JobStatusPending           JobStatus = "pending"
	JobStatusRunning           JobStatus = "running"
	JobStatusWaitingForCaptcha JobStatus = "waiting_for_captcha"
	JobStatusFailed            JobStatus = "failed"
	JobStatusCompleted         JobStatus = "completed"
	JobStatusCancelled         JobStatus = "cancelled"
)

// Terminal reports whether a status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusFailed || s == JobStatusCompleted || s == JobStatusCancelled
}

// Job is one submission attempt against the CEAC site. A job owns exactly one
// browser session for its whole lifetime.
type Job struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Status    JobStatus `json:"status"`
	Embassy   string    `json:"embassy"`
	FormData  FormData  `json:"form_data"`
	CreatedAt time.Time `json:"created_at"`
}

// FormData is the flat, read-only bag of answers keyed by "section.field"
// dot-paths. The engine only ever reads it.
type FormData map[string]string

// Get returns the value for a dot-path key. Empty values count as absent:
// absence means "leave the form's default", never an error.
func (f FormData) Get(key string) (string, bool) {
	v, ok := f[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// FieldType classifies how a form field must be driven.
type FieldType string

const (
	FieldText      FieldType = "text"
	FieldTextarea  FieldType = "textarea"
	FieldSelect    FieldType = "select"
	FieldRadio     FieldType = "radio"
	FieldCheckbox  FieldType = "checkbox"
	FieldDate      FieldType = "date"
	FieldDateSplit FieldType = "date_split"
)

// DateSegment names one component of a split date field.
type DateSegment string

const (
	SegmentDay   DateSegment = "day"
	SegmentMonth DateSegment = "month"
	SegmentYear  DateSegment = "year"
)

// DateFormat is the representation a split-date sub-field expects. The
// representation is static catalog data, never inferred at runtime.
type DateFormat string

const (
	FormatNumeric    DateFormat = "numeric"     // 7
	FormatZeroPadded DateFormat = "zero_padded" // 07
	FormatMonthAbbr  DateFormat = "month_abbr"  // JUL
)

// SplitPart binds one sub-field of a date_split mapping.
type SplitPart struct {
	Selector string      `json:"selector"`
	Segment  DateSegment `json:"segment"`
	Format   DateFormat  `json:"format"`
}

// ConditionalTrigger declares the follow-up fields revealed when the owning
// field is set to TriggerValue. Revealed fields may carry triggers of their
// own; expansion is a worklist, not fixed nesting.
type ConditionalTrigger struct {
	TriggerValue string         `json:"trigger_value"`
	Revealed     []FieldMapping `json:"revealed"`
}

// FieldMapping binds one logical form-data key to a concrete field on the
// remote page.
type FieldMapping struct {
	Key      string            `json:"key"`
	Selector string            `json:"selector"`
	Type     FieldType         `json:"type"`
	ValueMap map[string]string `json:"value_map,omitempty"`
	// Options maps a mapped value to the concrete input to click, for radio
	// groups where each choice is its own element.
	Options     map[string]string   `json:"options,omitempty"`
	Split       []SplitPart         `json:"split,omitempty"`
	Conditional *ConditionalTrigger `json:"conditional,omitempty"`
}

// StepMarkers carries what the validation gate needs to classify the page
// reached after an advance interaction.
type StepMarkers struct {
	// URLFragment identifies the step's own URL; still matching it after an
	// advance means the step did not progress.
	URLFragment string `json:"url_fragment"`
	// MarkerSelector is an element unique to the step's page.
	MarkerSelector string `json:"marker_selector"`
	// KnownErrors are step-specific error phrases checked before the generic
	// validation summary.
	KnownErrors []string `json:"known_errors,omitempty"`
}

// StepDefinition is the static catalog entry for one of the form's pages.
type StepDefinition struct {
	Number            int            `json:"number"`
	Name              string         `json:"name"`
	Fields            []FieldMapping `json:"fields"`
	AdvanceSelector   string         `json:"advance_selector"`
	Markers           StepMarkers    `json:"markers"`
	CaptchaCheckpoint bool           `json:"captcha_checkpoint"`
}

// CaptchaSpec locates the site's challenge widget. The widget is identical
// at every checkpoint, so one spec serves the whole form.
type CaptchaSpec struct {
	ImageSelector   string `json:"image_selector"`
	InputSelector   string `json:"input_selector"`
	AdvanceSelector string `json:"advance_selector"`
	// ErrorPhrase is the captcha-specific validation message the server
	// renders on a wrong answer.
	ErrorPhrase string `json:"error_phrase"`
	// NextURLFragment identifies the page reached on an accepted solve.
	NextURLFragment string `json:"next_url_fragment"`
}

// CaptchaChallenge is one human-verification puzzle issued to a job. At most
// one unsolved challenge exists per job; a refresh supersedes rather than
// duplicates.
type CaptchaChallenge struct {
	ID               uuid.UUID `json:"id"`
	JobID            uuid.UUID `json:"job_id"`
	ImageURL         string    `json:"image_url"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	Solved           bool      `json:"solved"`
	Solution         string    `json:"solution,omitempty"`
	RefreshRequested bool      `json:"refresh_requested"`
}

// ProgressUpdate is one append-only progress log record. The engine appends;
// it never reads its own history except to recover challenge state.
type ProgressUpdate struct {
	JobID        uuid.UUID      `json:"job_id"`
	StepName     string         `json:"step_name"`
	Status       JobStatus      `json:"status"`
	Message      string         `json:"message"`
	Percent      int            `json:"percent"`
	CaptchaImage string         `json:"captcha_image,omitempty"`
	NeedsCaptcha bool           `json:"needs_captcha"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TerminalResult is what Run hands back once a job reaches a terminal status.
type TerminalResult struct {
	Status        JobStatus `json:"status"`
	ApplicationID string    `json:"application_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}

// Artifact identifies a stored diagnostic blob (screenshot, captcha image).
type Artifact struct {
	ID        uuid.UUID `json:"id"`
	PublicURL string    `json:"public_url"`
}

// ArtifactMeta describes the blob being stored.
type ArtifactMeta struct {
	JobID    uuid.UUID `json:"job_id"`
	Kind     string    `json:"kind"`
	Filename string    `json:"filename"`
	MimeType string    `json:"mime_type"`
}
