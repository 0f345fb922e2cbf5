package appointment

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func validationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Validate checks business hours and data completeness of a submission.
//
// The upper bound is inclusive, so a 16:00 start is accepted and runs
// until 18:00.
// TODO: confirm with the workshop whether the last bookable start is 14:00.
func Validate(req BookingRequest) error {
	if req.StartTime < OpeningTime || req.StartTime > ClosingTime {
		return validationError("start_time", fmt.Sprintf("must be between %s and %s", OpeningTime, ClosingTime))
	}

	switch req.ServiceType {
	case ServiceTypeService:
	case ServiceTypeRepair:
		if strings.TrimSpace(req.ProblemDescription) == "" {
			return validationError("problem_description", "is required for repairs")
		}
	default:
		return validationError("service_type", fmt.Sprintf("unknown service type %q", req.ServiceType))
	}

	if req.Date.IsZero() {
		return validationError("date", "is required")
	}
	return nil
}
