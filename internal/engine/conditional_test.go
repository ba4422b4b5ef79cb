package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/applyflow/ds160-runner/api/schemas"
)

func licenseChainField() schemas.FieldMapping {
	return schemas.FieldMapping{
		Key:  "previous_us_travel.been_in_us",
		Type: schemas.FieldRadio,
		Conditional: &schemas.ConditionalTrigger{
			TriggerValue: "Yes",
			Revealed: []schemas.FieldMapping{
				{Key: "previous_us_travel.last_visit_date", Selector: "#lastVisit", Type: schemas.FieldDate},
				{
					Key:      "previous_us_travel.had_driver_license",
					Selector: "#hadLicense",
					Type:     schemas.FieldRadio,
					Conditional: &schemas.ConditionalTrigger{
						TriggerValue: "Yes",
						Revealed: []schemas.FieldMapping{
							{Key: "previous_us_travel.license_number", Selector: "#licenseNo", Type: schemas.FieldText},
							{Key: "previous_us_travel.license_state", Selector: "#licenseState", Type: schemas.FieldSelect},
						},
					},
				},
			},
		},
	}
}

func TestExpandFollowsNestedTriggers(t *testing.T) {
	formData := schemas.FormData{
		"previous_us_travel.been_in_us":         "Yes",
		"previous_us_travel.last_visit_date":    "2019-03-01",
		"previous_us_travel.had_driver_license": "Yes",
		"previous_us_travel.license_number":     "D1234567",
		"previous_us_travel.license_state":      "CA",
	}

	items := NewConditionalFieldExpander(zap.NewNop()).Expand(licenseChainField(), "Yes", formData)

	var keys []string
	for _, item := range items {
		keys = append(keys, item.Mapping.Key)
	}
	assert.Equal(t, []string{
		"previous_us_travel.last_visit_date",
		"previous_us_travel.had_driver_license",
		"previous_us_travel.license_number",
		"previous_us_travel.license_state",
	}, keys, "nested triggers expand to any declared depth")
}

func TestExpandStopsWhereAnswersStop(t *testing.T) {
	// Visited the US but never held a license: the license sub-fields stay out.
	formData := schemas.FormData{
		"previous_us_travel.been_in_us":         "Yes",
		"previous_us_travel.last_visit_date":    "2019-03-01",
		"previous_us_travel.had_driver_license": "No",
	}

	items := NewConditionalFieldExpander(zap.NewNop()).Expand(licenseChainField(), "Yes", formData)

	var keys []string
	for _, item := range items {
		keys = append(keys, item.Mapping.Key)
	}
	assert.Equal(t, []string{
		"previous_us_travel.last_visit_date",
		"previous_us_travel.had_driver_license",
	}, keys)
}

func TestExpandNoTriggerMatchIsEmpty(t *testing.T) {
	field := schemas.FieldMapping{
		Key:  "travel_info.purpose_of_trip",
		Type: schemas.FieldSelect,
		Conditional: &schemas.ConditionalTrigger{
			TriggerValue: "BUSINESS",
			Revealed: []schemas.FieldMapping{
				{Key: "travel_info.purpose_specify", Selector: "#specify", Type: schemas.FieldText},
			},
		},
	}
	items := NewConditionalFieldExpander(zap.NewNop()).Expand(field, "OTHER", schemas.FormData{
		"travel_info.purpose_specify": "conference",
	})
	assert.Empty(t, items, "a non-matching value owes no extra fills and no error")
}

func TestExpandSkipsRevealedFieldsWithoutValues(t *testing.T) {
	field := schemas.FieldMapping{
		Key:  "companions.traveling_with_others",
		Type: schemas.FieldRadio,
		Conditional: &schemas.ConditionalTrigger{
			TriggerValue: "Yes",
			Revealed: []schemas.FieldMapping{
				{Key: "companions.companion_surname", Selector: "#compSurname", Type: schemas.FieldText},
				{Key: "companions.companion_given_names", Selector: "#compGiven", Type: schemas.FieldText},
			},
		},
	}
	items := NewConditionalFieldExpander(zap.NewNop()).Expand(field, "Yes", schemas.FormData{
		"companions.companion_surname": "DOE",
	})
	require.Len(t, items, 1)
	assert.Equal(t, "companions.companion_surname", items[0].Mapping.Key)
}

func TestExpandMatchesMappedValues(t *testing.T) {
	// Trigger tables are written against the site codes the value map
	// produces; nested expansion must compare mapped values as well.
	field := schemas.FieldMapping{
		Key:      "previous_us_travel.been_in_us",
		Type:     schemas.FieldRadio,
		ValueMap: map[string]string{"Yes": "Y", "No": "N"},
		Conditional: &schemas.ConditionalTrigger{
			TriggerValue: "Y",
			Revealed: []schemas.FieldMapping{
				{
					Key:      "previous_us_travel.had_driver_license",
					Selector: "#hadLicense",
					Type:     schemas.FieldRadio,
					ValueMap: map[string]string{"Yes": "Y", "No": "N"},
					Conditional: &schemas.ConditionalTrigger{
						TriggerValue: "Y",
						Revealed: []schemas.FieldMapping{
							{Key: "previous_us_travel.license_number", Selector: "#licenseNo", Type: schemas.FieldText},
						},
					},
				},
			},
		},
	}
	items := NewConditionalFieldExpander(zap.NewNop()).Expand(field, "Y", schemas.FormData{
		"previous_us_travel.had_driver_license": "Yes",
		"previous_us_travel.license_number":     "D1234567",
	})
	var keys []string
	for _, item := range items {
		keys = append(keys, item.Mapping.Key)
	}
	assert.Equal(t, []string{
		"previous_us_travel.had_driver_license",
		"previous_us_travel.license_number",
	}, keys)
	assert.Equal(t, "Y", items[0].Value, "the fill value is the mapped code")
}
