// =============================================================================
// Transmittal Log - Submission Validation
// =============================================================================
//
// Structural checks run on a submission before anything touches the central
// log. The rules live in the `validate` struct tags of types.Submission and
// types.LineItem; this package registers the custom tags they need and turns
// validator errors into field-level messages.
//
// ERROR HANDLING:
//   - All violations are collected, not just the first.
//   - Each error names the field path as it appears in JSON
//     (e.g. items[2].amount) so a form can highlight it.
//   - The combined error is an apperr INVALID_SUBMISSION.
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/ginjaninja78/transmittal-log/internal/apperr"
	"github.com/ginjaninja78/transmittal-log/internal/types"
	"github.com/go-playground/validator/v10"
)

// TransmittalNoTag is the custom tag for transmittal numbers.
const TransmittalNoTag = "transmittalno"

var transmittalNoPattern = regexp.MustCompile(`^\d{8}-\d{4}$`)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError describes one violated rule.
type ValidationError struct {
	// Field is the JSON path of the offending field.
	Field string `json:"field"`

	// Rule is the validate tag that failed.
	Rule string `json:"rule"`

	// Value is the rejected value, truncated for display.
	Value string `json:"value,omitempty"`

	// Message is a human-readable description.
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("field '%s': %s", e.Field, e.Message)
}

// ValidationResult holds every violation found in one submission.
type ValidationResult struct {
	Errors []*ValidationError
}

// IsValid reports whether no rule was violated.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Error implements the error interface so a result can be wrapped.
func (r *ValidationResult) Error() string {
	if len(r.Errors) == 1 {
		return r.Errors[0].Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(r.Errors), r.Errors[0].Error())
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator checks submissions.
type Validator struct {
	v *validator.Validate
}

var (
	defaultOnce      sync.Once
	defaultValidator *Validator
)

// Default returns a shared validator.
func Default() *Validator {
	defaultOnce.Do(func() {
		defaultValidator = New()
	})
	return defaultValidator
}

// New creates a validator with the custom tags registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	Register(v)
	return &Validator{v: v}
}

// Register installs the transmittal tags and JSON field naming on v.
func Register(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation(TransmittalNoTag, func(fl validator.FieldLevel) bool {
		return IsTransmittalNo(fl.Field().String())
	})
}

// IsTransmittalNo reports whether s has the YYYYMMDD-NNNN shape.
func IsTransmittalNo(s string) bool {
	return transmittalNoPattern.MatchString(strings.TrimSpace(s))
}

// Validate checks s and returns nil or an INVALID_SUBMISSION error wrapping
// a *ValidationResult.
func (v *Validator) Validate(s *types.Submission) error {
	result := v.Check(s)
	if result.IsValid() {
		return nil
	}
	return apperr.InvalidSubmission(s.TransmittalNo, result)
}

// Check runs every rule and collects the violations.
func (v *Validator) Check(s *types.Submission) *ValidationResult {
	result := &ValidationResult{}

	err := v.v.Struct(s)
	if err == nil {
		return result
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		result.Errors = append(result.Errors, &ValidationError{
			Field:   "",
			Rule:    "struct",
			Message: err.Error(),
		})
		return result
	}

	for _, fe := range fieldErrs {
		result.Errors = append(result.Errors, &ValidationError{
			Field:   fieldPath(fe.Namespace()),
			Rule:    fe.Tag(),
			Value:   truncate(fmt.Sprint(fe.Value()), 40),
			Message: message(fe),
		})
	}
	return result
}

// Details extracts the field errors from an error returned by Validate.
func Details(err error) []*ValidationError {
	var result *ValidationResult
	if errors.As(err, &result) {
		return result.Errors
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// fieldPath drops the root struct name from a namespace such as
// "Submission.items[0].amount".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func message(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case TransmittalNoTag:
		return "Must look like YYYYMMDD-NNNN"
	default:
		return "Invalid value"
	}
}

// FormatErrors renders violations for display or logging.
func FormatErrors(errs []*ValidationError) string {
	if len(errs) == 0 {
		return "No validation errors."
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Validation failed with %d error(s):\n", len(errs)))
	for i, err := range errs {
		builder.WriteString(fmt.Sprintf("%d. %s\n", i+1, err.Error()))
	}
	return builder.String()
}
