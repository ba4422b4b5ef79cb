package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/applyflow/ds160-runner/api/schemas"
)

// FillItem is one resolved field application: the mapping plus the concrete
// value to drive into it (already run through the mapping's value table).
type FillItem struct {
	Mapping schemas.FieldMapping
	Value   string
}

// FillPlan is the ordered list of fields a step will actually fill. Order
// follows the step's declaration; later fields may depend on earlier ones
// revealing UI.
type FillPlan struct {
	Step  string
	Items []FillItem
}

// FieldResolver turns a step's declarative field catalog plus the form-data
// bag into a fill plan. Stateless.
type FieldResolver struct {
	logger *zap.Logger
}

// NewFieldResolver returns a resolver logging under the given parent.
func NewFieldResolver(logger *zap.Logger) *FieldResolver {
	return &FieldResolver{logger: logger.With(zap.String("component", "field_resolver"))}
}

// ResolveFill selects the fields that have values. Absent, null, or empty
// keys are skipped: absence means "leave the form's default", never an
// error. Value-mapping tables are applied for select/radio; unmapped values
// pass through verbatim.
func (r *FieldResolver) ResolveFill(step schemas.StepDefinition, formData schemas.FormData) FillPlan {
	plan := FillPlan{Step: step.Name}
	for _, mapping := range step.Fields {
		value, ok := formData.Get(mapping.Key)
		if !ok {
			r.logger.Debug("Skipping field with no value",
				zap.String("step", step.Name), zap.String("key", mapping.Key))
			continue
		}
		plan.Items = append(plan.Items, FillItem{
			Mapping: mapping,
			Value:   MapValue(mapping, value),
		})
	}
	return plan
}

// MapValue applies a mapping's value table when one exists. Only select and
// radio targets carry tables; everything else passes through.
func MapValue(mapping schemas.FieldMapping, value string) string {
	if len(mapping.ValueMap) == 0 {
		return value
	}
	if mapped, ok := mapping.ValueMap[value]; ok {
		return mapped
	}
	return value
}

// SplitDateValue renders one component of a date value ("2006-01-02") in the
// sub-field's declared representation.
func SplitDateValue(value string, part schemas.SplitPart) (string, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("unparseable date %q: %w", value, err)
	}

	switch part.Segment {
	case schemas.SegmentDay:
		if part.Format == schemas.FormatZeroPadded {
			return fmt.Sprintf("%02d", t.Day()), nil
		}
		return strconv.Itoa(t.Day()), nil
	case schemas.SegmentMonth:
		switch part.Format {
		case schemas.FormatMonthAbbr:
			return strings.ToUpper(t.Format("Jan")), nil
		case schemas.FormatZeroPadded:
			return fmt.Sprintf("%02d", int(t.Month())), nil
		default:
			return strconv.Itoa(int(t.Month())), nil
		}
	case schemas.SegmentYear:
		return strconv.Itoa(t.Year()), nil
	default:
		return "", fmt.Errorf("unknown date segment %q", part.Segment)
	}
}

// FieldApplier drives resolved fill items into the live page.
type FieldApplier struct {
	driver       schemas.BrowserDriver
	sync         *PostbackSynchronizer
	fieldTimeout time.Duration
	logger       *zap.Logger
}

// NewFieldApplier wires an applier against the job's browser session.
func NewFieldApplier(driver schemas.BrowserDriver, sync *PostbackSynchronizer, fieldTimeout time.Duration, logger *zap.Logger) *FieldApplier {
	return &FieldApplier{
		driver:       driver,
		sync:         sync,
		fieldTimeout: fieldTimeout,
		logger:       logger.With(zap.String("component", "field_applier")),
	}
}

// Apply fills every item in order, best-effort: a failure on one field is
// logged and swallowed, and the step only fails when every field in a
// non-empty plan failed. Returns the items that were applied successfully.
func (a *FieldApplier) Apply(ctx context.Context, plan FillPlan) ([]FillItem, error) {
	if len(plan.Items) == 0 {
		return nil, nil
	}

	var applied []FillItem
	for _, item := range plan.Items {
		if err := a.ApplyOne(ctx, item); err != nil {
			a.logger.Warn("Field fill failed, continuing best-effort",
				zap.String("step", plan.Step),
				zap.String("key", item.Mapping.Key),
				zap.String("selector", item.Mapping.Selector),
				zap.String("severity", Classify(err).String()),
				zap.Error(err))
			continue
		}
		applied = append(applied, item)
	}

	if len(applied) == 0 {
		return nil, fmt.Errorf("every field in step %q failed to fill: %w", plan.Step, ErrElementNotFound)
	}
	return applied, nil
}

// ApplyOne drives a single fill item. Interactions that can trigger a
// partial postback (select, radio, checkbox) are followed by a stabilization
// wait before control returns.
func (a *FieldApplier) ApplyOne(ctx context.Context, item FillItem) error {
	m := item.Mapping

	selector := m.Selector
	if m.Type == schemas.FieldRadio && len(m.Options) > 0 {
		if optSel, ok := m.Options[item.Value]; ok {
			selector = optSel
		}
	}

	if m.Type != schemas.FieldDateSplit {
		visible, err := a.driver.WaitVisible(ctx, selector, a.fieldTimeout)
		if err != nil {
			return fmt.Errorf("waiting for %q: %w", selector, err)
		}
		if !visible {
			return fmt.Errorf("field %q (%s): %w", m.Key, selector, ErrElementNotFound)
		}
	}

	switch m.Type {
	case schemas.FieldText, schemas.FieldTextarea, schemas.FieldDate:
		return a.driver.Fill(ctx, selector, item.Value)

	case schemas.FieldSelect:
		if err := a.driver.SelectOption(ctx, selector, item.Value); err != nil {
			return err
		}
		// Selects on this site routinely trigger onchange postbacks.
		a.sync.AwaitStable(ctx, "select "+m.Key)
		return nil

	case schemas.FieldRadio:
		if err := a.driver.Click(ctx, selector); err != nil {
			return err
		}
		a.sync.AwaitStable(ctx, "radio "+m.Key)
		return nil

	case schemas.FieldCheckbox:
		checked := isAffirmative(item.Value)
		if err := a.driver.SetChecked(ctx, selector, checked); err != nil {
			return err
		}
		a.sync.AwaitStable(ctx, "checkbox "+m.Key)
		return nil

	case schemas.FieldDateSplit:
		for _, part := range m.Split {
			rendered, err := SplitDateValue(item.Value, part)
			if err != nil {
				return err
			}
			visible, err := a.driver.WaitVisible(ctx, part.Selector, a.fieldTimeout)
			if err != nil {
				return fmt.Errorf("waiting for %q: %w", part.Selector, err)
			}
			if !visible {
				return fmt.Errorf("date part %s (%s): %w", part.Segment, part.Selector, ErrElementNotFound)
			}
			if err := a.driver.SelectOption(ctx, part.Selector, rendered); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unsupported field type %q for %q", m.Type, m.Key)
	}
}

// isAffirmative interprets the form-data conventions for checkbox state.
func isAffirmative(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "y", "1", "on", "checked":
		return true
	default:
		return false
	}
}
