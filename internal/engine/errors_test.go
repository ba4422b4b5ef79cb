package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Severity
	}{
		{"element not found is field-local", ErrElementNotFound, SeverityFieldLocal},
		{"postback ambiguity is field-local", ErrPostbackAmbiguous, SeverityFieldLocal},
		{"validation rejection is step-fatal", ErrValidationRejected, SeverityStepFatal},
		{"navigation timeout is step-fatal", ErrNavigationTimeout, SeverityStepFatal},
		{"captcha timeout is job-fatal", ErrCaptchaTimeout, SeverityJobFatal},
		{"captcha rejection is job-fatal", ErrCaptchaRejected, SeverityJobFatal},
		{"unknown faults are step-fatal", errors.New("surprise"), SeverityStepFatal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestClassifySeesThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("step 4 (Travel Info): %w", fmt.Errorf("field #x: %w", ErrElementNotFound))
	assert.Equal(t, SeverityFieldLocal, Classify(wrapped))

	wrapped = fmt.Errorf("5 rejections: %w", ErrCaptchaRejected)
	assert.Equal(t, SeverityJobFatal, Classify(wrapped))
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "field_local", SeverityFieldLocal.String())
	assert.Equal(t, "step_fatal", SeverityStepFatal.String())
	assert.Equal(t, "job_fatal", SeverityJobFatal.String())
}
