package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure: no infrastructure dependency.
// Algorithmic code (normalizer, scoring, streaks, badges) never returns errors;
// only I/O-facing operations do.

var (
	// Input validation
	ErrValidation   = errors.New("invalid input")
	ErrUnknownDay   = errors.New("unknown day key")
	ErrMealNotFound = errors.New("meal not found in plan")
	ErrNoPlan       = errors.New("no weekly plan configured")
	ErrNoPhotos     = errors.New("at least one photo is required to analyze a meal")

	// Progress
	ErrDuplicateLog = errors.New("meal log already recorded")

	// Notifications
	ErrNotificationNotFound = errors.New("notification not found")

	// External services
	ErrServiceUnavailable  = errors.New("external service unavailable")
	ErrBadServiceResponse  = errors.New("external service returned an unusable response")
	ErrUnsupportedDocument = errors.New("unsupported plan document")
	ErrBackendUnknown      = errors.New("unknown service backend")

	// Persistence
	ErrStore = errors.New("state store failure")
)
