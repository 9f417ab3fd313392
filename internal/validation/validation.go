// Package validation checks candidate records against field rules and the
// configured option sets. It has no side effects.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"checkin/internal/model"
	"checkin/internal/options"
)

var (
	nationalIDPattern = regexp.MustCompile(`^\d{11}$`)
	nonDigit          = regexp.MustCompile(`\D`)
)

// Rule names reported in FieldError.Rule.
const (
	RuleRequired     = "required"
	RuleMinLength    = "min"
	RuleNationalID   = "national_id"
	RuleOption       = "option"
	RuleAbsentReason = "absent_reason"
)

// FieldError describes one violated rule.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Result collects every violation found in a candidate.
type Result struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors"`
}

// Has reports whether field has at least one error.
func (r Result) Has(field string) bool {
	for _, e := range r.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation(RuleNationalID, func(fl validator.FieldLevel) bool {
		return nationalIDPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// NormalizeNationalID strips every non-digit character.
func NormalizeNationalID(s string) string {
	return nonDigit.ReplaceAllString(s, "")
}

// Validate runs the per-field rules, then option membership, then the
// status/absentReason cross-field rule. All violations are returned together.
func Validate(c model.Candidate, opts options.Set) Result {
	c = Clean(c)
	var errs []FieldError

	if err := structValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			errs = append(errs, FieldError{Field: "candidate", Rule: "invalid", Message: err.Error()})
		}
		for _, fe := range verrs {
			errs = append(errs, fieldError(fe))
		}
	}
	failed := func(field string) bool {
		for _, e := range errs {
			if e.Field == field {
				return true
			}
		}
		return false
	}

	enums := []struct{ field, value string }{
		{options.FieldReclassification, c.Reclassification},
		{options.FieldChurchPosition, c.ChurchPosition},
		{options.FieldShift, c.Shift},
		{options.FieldStatus, c.Status},
	}
	for _, e := range enums {
		if failed(e.field) {
			continue
		}
		if !opts.Contains(e.field, e.value) {
			errs = append(errs, FieldError{
				Field:   e.field,
				Rule:    RuleOption,
				Message: fmt.Sprintf("%q is not a configured %s option", e.value, e.field),
			})
		}
	}

	if !failed(options.FieldStatus) && RequiresAbsentReason(c.Status) && c.AbsentReason == "" {
		errs = append(errs, FieldError{
			Field:   "absentReason",
			Rule:    RuleAbsentReason,
			Message: fmt.Sprintf("absentReason is required when status is %q", c.Status),
		})
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// RequiresAbsentReason reports whether a record with status must carry a reason.
func RequiresAbsentReason(status string) bool {
	return status != model.StatusPresent
}

// ValidateStatus checks a standalone status change.
func ValidateStatus(status, absentReason string, opts options.Set) Result {
	status = strings.TrimSpace(status)
	var errs []FieldError
	switch {
	case status == "":
		errs = append(errs, FieldError{Field: options.FieldStatus, Rule: RuleRequired, Message: "status is required"})
	case !opts.Contains(options.FieldStatus, status):
		errs = append(errs, FieldError{
			Field:   options.FieldStatus,
			Rule:    RuleOption,
			Message: fmt.Sprintf("%q is not a configured status option", status),
		})
	case RequiresAbsentReason(status) && strings.TrimSpace(absentReason) == "":
		errs = append(errs, FieldError{
			Field:   "absentReason",
			Rule:    RuleAbsentReason,
			Message: fmt.Sprintf("absentReason is required when status is %q", status),
		})
	}
	return Result{Valid: len(errs) == 0, Errors: errs}
}

func fieldError(fe validator.FieldError) FieldError {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return FieldError{Field: field, Rule: RuleRequired, Message: field + " is required"}
	case "min":
		return FieldError{Field: field, Rule: RuleMinLength, Message: fmt.Sprintf("%s must have at least %s characters", field, fe.Param())}
	case RuleNationalID:
		return FieldError{Field: field, Rule: RuleNationalID, Message: "nationalId must contain exactly 11 digits"}
	}
	return FieldError{Field: field, Rule: fe.Tag(), Message: fe.Error()}
}

// Clean trims surrounding whitespace from every text field of c.
func Clean(c model.Candidate) model.Candidate {
	c.FullName = strings.TrimSpace(c.FullName)
	c.NationalID = strings.TrimSpace(c.NationalID)
	c.Birthday = strings.TrimSpace(c.Birthday)
	c.PastorName = strings.TrimSpace(c.PastorName)
	c.Reclassification = strings.TrimSpace(c.Reclassification)
	c.ChurchPosition = strings.TrimSpace(c.ChurchPosition)
	c.Region = strings.TrimSpace(c.Region)
	c.City = strings.TrimSpace(c.City)
	c.Shift = strings.TrimSpace(c.Shift)
	c.Status = strings.TrimSpace(c.Status)
	c.AbsentReason = strings.TrimSpace(c.AbsentReason)
	return c
}
