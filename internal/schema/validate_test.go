package schema

import (
	"testing"

	"github.com/blocksmith-dev/blocksmith/internal/models"
)

func findError(errs []FieldError, field, code string) bool {
	for _, e := range errs {
		if e.Field == field && e.Code == code {
			return true
		}
	}
	return false
}

func TestValidateAcceptsWellFormedSchema(t *testing.T) {
	fields := models.FieldSchema{
		"heading": {Type: models.FieldTypeText, DefaultValue: "Hello"},
		"count":   {Type: models.FieldTypeNumber, DefaultValue: 3},
		"theme": {
			Type:         models.FieldTypeSelect,
			DefaultValue: "light",
			Options:      []models.SelectOption{{Label: "Light", Value: "light"}},
		},
	}

	if errs := Validate(fields, models.NewTypeRegistry()); len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidateMissingType(t *testing.T) {
	fields := models.FieldSchema{"broken": {}}

	errs := Validate(fields, models.NewTypeRegistry())
	if !findError(errs, "broken", "MISSING_TYPE") {
		t.Errorf("expected MISSING_TYPE, got %v", errs)
	}
}

func TestValidateDefaultTypeMismatch(t *testing.T) {
	fields := models.FieldSchema{
		"count": {Type: models.FieldTypeNumber, DefaultValue: "three"},
		"flag":  {Type: models.FieldTypeBoolean, DefaultValue: "yes"},
	}

	errs := Validate(fields, models.NewTypeRegistry())
	if !findError(errs, "count", "DEFAULT_TYPE_MISMATCH") {
		t.Errorf("expected mismatch on count, got %v", errs)
	}
	if !findError(errs, "flag", "DEFAULT_TYPE_MISMATCH") {
		t.Errorf("expected mismatch on flag, got %v", errs)
	}
}

func TestValidateSelectWithoutOptions(t *testing.T) {
	fields := models.FieldSchema{"theme": {Type: models.FieldTypeSelect}}

	errs := Validate(fields, models.NewTypeRegistry())
	if !findError(errs, "theme", "MISSING_OPTIONS") {
		t.Errorf("expected MISSING_OPTIONS, got %v", errs)
	}
}

func TestValidateRepeaterBoundsAndNestedFields(t *testing.T) {
	fields := models.FieldSchema{
		"items": {
			Type:     models.FieldTypeRepeater,
			MinItems: 5,
			MaxItems: 2,
			ItemSchema: models.FieldSchema{
				"qty": {Type: models.FieldTypeNumber, DefaultValue: "lots"},
			},
		},
	}

	errs := Validate(fields, models.NewTypeRegistry())
	if !findError(errs, "items", "INVALID_BOUNDS") {
		t.Errorf("expected INVALID_BOUNDS, got %v", errs)
	}
	if !findError(errs, "items.qty", "DEFAULT_TYPE_MISMATCH") {
		t.Errorf("expected nested field path items.qty, got %v", errs)
	}
}

func TestValidateUnknownTypePassesThrough(t *testing.T) {
	fields := models.FieldSchema{
		"custom": {Type: "backend-widget", DefaultValue: map[string]interface{}{"x": 1}},
	}

	if errs := Validate(fields, models.NewTypeRegistry()); len(errs) != 0 {
		t.Errorf("unknown types must not produce findings, got %v", errs)
	}
}

func TestValidateExtensionTypeRegistered(t *testing.T) {
	reg := models.NewTypeRegistry("map-picker")
	if !reg.Known("map-picker") {
		t.Error("registered extension type should be known")
	}
	if reg.Builtin("map-picker") {
		t.Error("extension type must not be reported builtin")
	}
}

func TestValidateBadPatternAndCondition(t *testing.T) {
	fields := models.FieldSchema{
		"slug": {
			Type:       models.FieldTypeText,
			Validation: &models.FieldValidation{Pattern: "(unclosed"},
			ShowWhen:   &models.ShowWhen{Field: "other", Operator: "startsWith"},
		},
	}

	errs := Validate(fields, models.NewTypeRegistry())
	if !findError(errs, "slug", "INVALID_PATTERN") {
		t.Errorf("expected INVALID_PATTERN, got %v", errs)
	}
	if !findError(errs, "slug", "INVALID_CONDITION") {
		t.Errorf("expected INVALID_CONDITION, got %v", errs)
	}
}
