package schema

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const tagFinite = "finite"

// Schema validates raw passenger records against their declared domains.
// A Schema is safe for concurrent use.
type Schema struct {
	validate *validator.Validate
}

// New builds a Schema with the field rules declared on PassengerRecord.
func New() *Schema {
	v := validator.New()

	// Report violations with the json field names clients send.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation(tagFinite, isFinite); err != nil {
		// Only fails on an empty tag or nil func.
		panic(fmt.Sprintf("register %q rule: %v", tagFinite, err))
	}

	return &Schema{validate: v}
}

// Validate checks every field of rec. It returns nil when rec is valid and
// a *ValidationError otherwise.
func (s *Schema) Validate(rec PassengerRecord) error {
	err := s.validate.Struct(rec)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate passenger record: %w", err)
	}

	out := &ValidationError{Violations: make([]Violation, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Violations = append(out.Violations, Violation{
			Field:  fe.Field(),
			Reason: reason(fe),
		})
	}
	return out
}

// FeatureOrder returns the model feature order. See the package-level
// FeatureOrder.
func (s *Schema) FeatureOrder() []string { return FeatureOrder() }

// Fields returns the raw field descriptions.
func (s *Schema) Fields() []FieldSpec { return Fields() }

func isFinite(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.Float32, reflect.Float64:
		x := f.Float()
		return !math.IsNaN(x) && !math.IsInf(x, 0)
	default:
		return true
	}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case tagFinite:
		return "must be a finite number"
	default:
		return fmt.Sprintf("invalid value (failed on %q)", fe.Tag())
	}
}
