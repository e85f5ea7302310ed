package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrReportNotFound signals a missing source report. Fatal for the run that asked for it.
	ErrReportNotFound = errors.New("report not found")
	// ErrMatchNotFound signals an unknown persisted match id.
	ErrMatchNotFound = errors.New("match not found")
	// ErrUserNotFound signals an unknown user.
	ErrUserNotFound = errors.New("user not found")

	// ErrValidation signals malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidStatus signals an unknown match status.
	ErrInvalidStatus = fmt.Errorf("invalid match status: %w", ErrValidation)
	// ErrInvalidReportKind signals an unknown or unsupported report kind.
	ErrInvalidReportKind = fmt.Errorf("invalid report kind: %w", ErrValidation)
	// ErrInvalidSettings signals a settings update with nothing valid in it.
	ErrInvalidSettings = fmt.Errorf("no valid settings provided: %w", ErrValidation)

	// ErrExternalServiceUnavailable signals a comparator or text service that is unreachable or timed out.
	ErrExternalServiceUnavailable = errors.New("external service unavailable")
	// ErrInvalidCandidate signals a candidate that cannot be compared (e.g. no feature bundle).
	ErrInvalidCandidate = errors.New("invalid candidate")
	// ErrPersistenceConflict signals a concurrent replace on the same lost report.
	ErrPersistenceConflict = errors.New("persistence conflict")
	// ErrNotificationChannelFailure signals a failed delivery on one notification channel.
	ErrNotificationChannelFailure = errors.New("notification channel failure")
	// ErrSchedulerOverlap signals a tick skipped because a cycle is still running.
	ErrSchedulerOverlap = errors.New("scheduler cycle already in progress")
)

// IsCallerError reports whether err should be surfaced to a direct caller.
// Everything else degrades and is only logged.
func IsCallerError(err error) bool {
	return errors.Is(err, ErrReportNotFound) ||
		errors.Is(err, ErrMatchNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrValidation)
}
