package lostmatch

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/lostmatch/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrReportNotFound             = domain.ErrReportNotFound
	ErrMatchNotFound              = domain.ErrMatchNotFound
	ErrUserNotFound               = domain.ErrUserNotFound
	ErrValidation                 = domain.ErrValidation
	ErrInvalidStatus              = domain.ErrInvalidStatus
	ErrInvalidReportKind          = domain.ErrInvalidReportKind
	ErrInvalidSettings            = domain.ErrInvalidSettings
	ErrExternalServiceUnavailable = domain.ErrExternalServiceUnavailable
	ErrPersistenceConflict        = domain.ErrPersistenceConflict
	ErrSchedulerOverlap           = domain.ErrSchedulerOverlap
	ErrNotificationChannelFailure = domain.ErrNotificationChannelFailure
)

// Errors that only exist on the client side of the wire.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrServer       = errors.New("server error")
)

// APIError is a non-2xx answer from the admin API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("lostmatch: %d %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("lostmatch: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap maps the error code onto a sentinel so errors.Is works across the wire.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "report_not_found":
		return ErrReportNotFound
	case "match_not_found":
		return ErrMatchNotFound
	case "user_not_found":
		return ErrUserNotFound
	case "invalid_status":
		return ErrInvalidStatus
	case "invalid_report_kind":
		return ErrInvalidReportKind
	case "invalid_settings":
		return ErrInvalidSettings
	case "validation_failed", "bad_request":
		return ErrValidation
	case "unauthorized":
		return ErrUnauthorized
	case "scheduler_busy":
		return ErrSchedulerOverlap
	case "conflict":
		return ErrPersistenceConflict
	case "external_service_unavailable":
		return ErrExternalServiceUnavailable
	case "realtime_unavailable":
		return ErrNotificationChannelFailure
	}
	if e.StatusCode >= 500 {
		return ErrServer
	}
	return nil
}
