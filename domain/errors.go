package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoConnectivity blocks mutating actions before any network call is
	// made. The action can be re-triggered once the device is back online.
	ErrNoConnectivity = errors.New("no internet connection")

	// ErrLocationUnavailable means no position fix could be produced even
	// though location permission is granted.
	ErrLocationUnavailable = errors.New("location unavailable")

	// ErrVerificationRequired gates capture behind a verified account.
	ErrVerificationRequired = errors.New("a verified account is required")

	// ErrBuddyRequired gates capture until at least one buddy exists to
	// star on the post.
	ErrBuddyRequired = errors.New("at least one buddy is required")
)

// PermissionError reports a device permission that is permanently denied.
// Callers surface it together with a redirect to the system settings.
type PermissionError struct {
	Resource string // "location", "camera" or "microphone"
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("access to %s is denied", e.Resource)
}

// RequestError is any non-2xx backend response. The body is kept verbatim
// so it can be shown to the user; nothing retries these automatically
// outside the upload chunk schedule.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Body)
}

// ValidationError rejects malformed local input before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PartialUploadError marks an upload whose bytes landed but whose
// metadata-attach step failed: the video exists on the backend without its
// location metadata. It must be surfaced distinctly so the user is neither
// told the post fully succeeded nor fully failed.
type PartialUploadError struct {
	Err error
}

func (e *PartialUploadError) Error() string {
	return fmt.Sprintf("video uploaded but location metadata was not attached: %v", e.Err)
}

func (e *PartialUploadError) Unwrap() error {
	return e.Err
}
