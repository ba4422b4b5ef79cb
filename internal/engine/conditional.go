package engine

import (
	"go.uber.org/zap"

	"github.com/applyflow/ds160-runner/api/schemas"
)

// ConditionalFieldExpander computes the follow-up fields revealed by a
// triggering selection. Expansion is a worklist, not fixed nesting: a
// revealed field whose own value matches its own trigger pushes further
// fields, to any depth the catalog declares.
type ConditionalFieldExpander struct {
	logger *zap.Logger
}

// NewConditionalFieldExpander returns an expander logging under the parent.
func NewConditionalFieldExpander(logger *zap.Logger) *ConditionalFieldExpander {
	return &ConditionalFieldExpander{logger: logger.With(zap.String("component", "conditional_expander"))}
}

// Expand returns the additional fill items owed after field was set to
// value. Revealed fields with no value in formData are skipped like any
// other absent field. No trigger match returns an empty plan, not an error.
func (e *ConditionalFieldExpander) Expand(field schemas.FieldMapping, value string, formData schemas.FormData) []FillItem {
	type pending struct {
		mapping schemas.FieldMapping
		value   string
	}

	worklist := []pending{{mapping: field, value: value}}
	var items []FillItem

	for len(worklist) > 0 {
		current := worklist[0]
		worklist = worklist[1:]

		trigger := current.mapping.Conditional
		if trigger == nil || current.value != trigger.TriggerValue {
			continue
		}

		e.logger.Debug("Conditional trigger matched",
			zap.String("field", current.mapping.Key),
			zap.String("value", current.value),
			zap.Int("revealed", len(trigger.Revealed)))

		for _, revealed := range trigger.Revealed {
			revealedValue, ok := formData.Get(revealed.Key)
			if !ok {
				continue
			}
			mapped := MapValue(revealed, revealedValue)
			items = append(items, FillItem{Mapping: revealed, Value: mapped})
			// The revealed field may itself reveal more; trigger tables are
			// written against mapped site codes, so queue the mapped value.
			worklist = append(worklist, pending{mapping: revealed, value: mapped})
		}
	}

	return items
}
