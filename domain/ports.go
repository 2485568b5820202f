package domain

import (
	"context"
	"time"
)

// TokenSource supplies a bearer credential. Implementations must return a
// freshly refreshed token on every call; tokens are never cached across
// requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// PermissionState is the device's answer for a single permission.
type PermissionState int

const (
	// PermissionGranted means the permission is usable now.
	PermissionGranted PermissionState = iota
	// PermissionAskable means not granted, but the system prompt may still
	// be shown.
	PermissionAskable
	// PermissionDenied means permanently denied; only the system settings
	// can change it.
	PermissionDenied
)

// Locator is the device location service.
type Locator interface {
	// Permission reports the current foreground-location permission.
	Permission() PermissionState

	// RequestPermission shows the system prompt and returns the resulting
	// state.
	RequestPermission(ctx context.Context) (PermissionState, error)

	// Position performs a one-shot position query.
	Position(ctx context.Context) (GeoPoint, error)
}

// ReverseGeocoder returns candidate address strings for a point.
type ReverseGeocoder interface {
	Lookup(ctx context.Context, p GeoPoint) ([]string, error)
}

// SystemSettings opens the OS settings app so the user can flip a
// permanently denied permission.
type SystemSettings interface {
	Open()
}

// Connectivity reports network reachability.
type Connectivity interface {
	Online() bool
}

// Player is the device media-engine handle for a single feed item. All
// methods may be called before the underlying handle exists; the cell
// controller guards that case.
type Player interface {
	// Playing queries the live playback status.
	Playing(ctx context.Context) (bool, error)

	// Play starts or resumes playback.
	Play(ctx context.Context) error

	// Stop halts playback and rewinds to the start.
	Stop(ctx context.Context) error

	// Unload releases the decoder and any buffered media.
	Unload(ctx context.Context) error
}

// MediaResolver resolves an opaque storage reference into a time-limited
// playable URL.
type MediaResolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// Artifact is a recorded video sitting on local storage.
type Artifact struct {
	Path     string
	Size     int64
	Duration time.Duration
}

// Camera is the device capture service.
type Camera interface {
	CameraPermission() PermissionState
	MicrophonePermission() PermissionState

	// RequestPermissions shows the camera and microphone prompts for
	// whichever of the two is still askable.
	RequestPermissions(ctx context.Context) error

	// Record captures video until StopRecording is called or maxDuration
	// elapses, then returns the produced artifact.
	Record(ctx context.Context, maxDuration time.Duration) (Artifact, error)

	// StopRecording ends an in-progress recording early.
	StopRecording()
}
