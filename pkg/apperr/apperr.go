// Package apperr defines the error taxonomy shared by the document store and
// the attachment backends. Sites wrap with fmt.Errorf("%w: ...") and callers
// classify with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound reports an absent document title or attachment blob.
	ErrNotFound = errors.New("not found")

	// ErrValidation reports unsafe input, e.g. a path traversal attempt. It
	// is raised before any filesystem or network access happens.
	ErrValidation = errors.New("validation failed")

	// ErrConfiguration reports that remote storage was requested while
	// disabled or misconfigured.
	ErrConfiguration = errors.New("storage not configured")

	// ErrBackendUnavailable reports a network or authentication failure
	// against disk or object storage.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrTimeout reports a bounded backend call that exceeded its deadline.
	ErrTimeout = errors.New("storage call timed out")
)
