package report

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// User-facing validation messages.
const (
	MsgDatesRequired   = "Please select both start and end dates"
	MsgTicketsRequired = "Please enter at least one ticket"
)

// ValidationError is returned for a request that must not reach the service.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidationError reports whether err is, or wraps, a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var validate = validator.New()

// Validate checks the request invariants. It never touches the network.
func (r Request) Validate() error {
	switch r.Kind {
	case KindEOD:
		return nil
	case KindSprintReview:
		if r.SprintReview == nil {
			return &ValidationError{Field: "startDate", Message: MsgDatesRequired}
		}
		return validateSprintReview(r.SprintReview)
	default:
		return &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown report kind %q", r.Kind)}
	}
}

func validateSprintReview(p *SprintReviewParams) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "request", Message: err.Error()}
	}

	// Report the first problem in form order: dates, then tickets.
	fe := fieldErrs[0]
	switch fe.StructField() {
	case "StartDate", "EndDate":
		field := "startDate"
		if fe.StructField() == "EndDate" {
			field = "endDate"
		}
		if fe.Tag() == "required" {
			return &ValidationError{Field: field, Message: MsgDatesRequired}
		}
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%s must be a calendar date in YYYY-MM-DD format, got %q", field, fe.Value()),
		}
	default:
		return &ValidationError{Field: "tickets", Message: MsgTicketsRequired}
	}
}
