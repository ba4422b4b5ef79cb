package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/applyflow/ds160-runner/api/schemas"
)

func TestResolveFillSkipsAbsentAndEmptyValues(t *testing.T) {
	step := schemas.StepDefinition{
		Name: "Personal",
		Fields: []schemas.FieldMapping{
			{Key: "personal.surname", Selector: "#surname", Type: schemas.FieldText},
			{Key: "personal.given_names", Selector: "#given", Type: schemas.FieldText},
			{Key: "personal.full_name_native", Selector: "#native", Type: schemas.FieldText},
		},
	}
	formData := schemas.FormData{
		"personal.surname":     "DOE",
		"personal.given_names": "",
	}

	plan := NewFieldResolver(zap.NewNop()).ResolveFill(step, formData)

	require.Len(t, plan.Items, 1, "empty and absent values both mean leave-the-default")
	assert.Equal(t, "personal.surname", plan.Items[0].Mapping.Key)
	assert.Equal(t, "DOE", plan.Items[0].Value)
}

func TestResolveFillAppliesValueMap(t *testing.T) {
	step := schemas.StepDefinition{
		Name: "Travel",
		Fields: []schemas.FieldMapping{
			{
				Key:      "travel_info.purpose_of_trip",
				Selector: "#purpose",
				Type:     schemas.FieldSelect,
				ValueMap: map[string]string{"BUSINESS": "B"},
			},
		},
	}

	plan := NewFieldResolver(zap.NewNop()).ResolveFill(step, schemas.FormData{
		"travel_info.purpose_of_trip": "BUSINESS",
	})
	require.Len(t, plan.Items, 1)
	assert.Equal(t, "B", plan.Items[0].Value)

	// Unmapped values pass through verbatim rather than failing.
	plan = NewFieldResolver(zap.NewNop()).ResolveFill(step, schemas.FormData{
		"travel_info.purpose_of_trip": "OTHER",
	})
	require.Len(t, plan.Items, 1)
	assert.Equal(t, "OTHER", plan.Items[0].Value)
}

func TestSplitDateValue(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		segment schemas.DateSegment
		format  schemas.DateFormat
		want    string
	}{
		{"day numeric", "1990-07-04", schemas.SegmentDay, schemas.FormatNumeric, "4"},
		{"day zero padded", "1990-07-04", schemas.SegmentDay, schemas.FormatZeroPadded, "04"},
		{"month numeric", "1990-07-04", schemas.SegmentMonth, schemas.FormatNumeric, "7"},
		{"month zero padded", "1990-07-04", schemas.SegmentMonth, schemas.FormatZeroPadded, "07"},
		{"month abbreviation", "1990-07-04", schemas.SegmentMonth, schemas.FormatMonthAbbr, "JUL"},
		{"year", "1990-07-04", schemas.SegmentYear, schemas.FormatNumeric, "1990"},
		{"december abbreviation", "2001-12-31", schemas.SegmentMonth, schemas.FormatMonthAbbr, "DEC"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SplitDateValue(tc.value, schemas.SplitPart{Segment: tc.segment, Format: tc.format})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSplitDateValueRejectsGarbage(t *testing.T) {
	_, err := SplitDateValue("07/04/1990", schemas.SplitPart{Segment: schemas.SegmentDay, Format: schemas.FormatNumeric})
	assert.Error(t, err)
}

func newTestApplier(driver *fakeDriver) *FieldApplier {
	cfg := testConfig()
	sync := NewPostbackSynchronizer(driver, cfg.Postback, zap.NewNop())
	return NewFieldApplier(driver, sync, cfg.Engine.FieldTimeout, zap.NewNop())
}

func TestApplyBestEffortContinuesPastFailures(t *testing.T) {
	driver := newFakeDriver()
	driver.Visible["#a"] = true
	driver.Visible["#b"] = false // never appears
	driver.Visible["#c"] = true

	plan := FillPlan{Step: "Personal", Items: []FillItem{
		{Mapping: schemas.FieldMapping{Key: "a", Selector: "#a", Type: schemas.FieldText}, Value: "1"},
		{Mapping: schemas.FieldMapping{Key: "b", Selector: "#b", Type: schemas.FieldText}, Value: "2"},
		{Mapping: schemas.FieldMapping{Key: "c", Selector: "#c", Type: schemas.FieldText}, Value: "3"},
	}}

	applied, err := newTestApplier(driver).Apply(context.Background(), plan)
	require.NoError(t, err, "one missing optional field must not sink the step")
	assert.Len(t, applied, 2)
	assert.Equal(t, "1", driver.Filled["#a"])
	assert.Equal(t, "3", driver.Filled["#c"])
	assert.NotContains(t, driver.Filled, "#b")
}

func TestApplyFailsWhenEveryFieldFails(t *testing.T) {
	driver := newFakeDriver() // nothing visible
	plan := FillPlan{Step: "Personal", Items: []FillItem{
		{Mapping: schemas.FieldMapping{Key: "a", Selector: "#a", Type: schemas.FieldText}, Value: "1"},
		{Mapping: schemas.FieldMapping{Key: "b", Selector: "#b", Type: schemas.FieldText}, Value: "2"},
	}}

	_, err := newTestApplier(driver).Apply(context.Background(), plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrElementNotFound)
}

func TestApplyEmptyPlanIsANoop(t *testing.T) {
	applied, err := newTestApplier(newFakeDriver()).Apply(context.Background(), FillPlan{Step: "Personal"})
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestApplyOneRadioPicksOptionSelector(t *testing.T) {
	driver := newFakeDriver()
	driver.Visible["#ind_1"] = true

	item := FillItem{
		Mapping: schemas.FieldMapping{
			Key:      "previous_us_travel.been_in_us",
			Selector: "#ind_0",
			Type:     schemas.FieldRadio,
			Options:  map[string]string{"Y": "#ind_0", "N": "#ind_1"},
		},
		Value: "N",
	}
	require.NoError(t, newTestApplier(driver).ApplyOne(context.Background(), item))
	assert.Equal(t, []string{"#ind_1"}, driver.Clicks, "the No input, not the group default, must be clicked")
}

func TestApplyOneDateSplitDrivesEachPart(t *testing.T) {
	driver := newFakeDriver()
	driver.Visible["#dobDay"] = true
	driver.Visible["#dobMonth"] = true
	driver.Visible["#dobYear"] = true

	item := FillItem{
		Mapping: schemas.FieldMapping{
			Key:  "personal.date_of_birth",
			Type: schemas.FieldDateSplit,
			Split: []schemas.SplitPart{
				{Selector: "#dobDay", Segment: schemas.SegmentDay, Format: schemas.FormatZeroPadded},
				{Selector: "#dobMonth", Segment: schemas.SegmentMonth, Format: schemas.FormatMonthAbbr},
				{Selector: "#dobYear", Segment: schemas.SegmentYear, Format: schemas.FormatNumeric},
			},
		},
		Value: "1990-07-04",
	}
	require.NoError(t, newTestApplier(driver).ApplyOne(context.Background(), item))
	assert.Equal(t, "04", driver.Selected["#dobDay"])
	assert.Equal(t, "JUL", driver.Selected["#dobMonth"])
	assert.Equal(t, "1990", driver.Selected["#dobYear"])
}

func TestApplyOneCheckboxInterpretsValue(t *testing.T) {
	driver := newFakeDriver()
	driver.Visible["#agree"] = true

	mapping := schemas.FieldMapping{Key: "privacy.agree", Selector: "#agree", Type: schemas.FieldCheckbox}
	applier := newTestApplier(driver)

	require.NoError(t, applier.ApplyOne(context.Background(), FillItem{Mapping: mapping, Value: "Yes"}))
	assert.True(t, driver.Checked["#agree"])

	require.NoError(t, applier.ApplyOne(context.Background(), FillItem{Mapping: mapping, Value: "no"}))
	assert.False(t, driver.Checked["#agree"])
}
