// Package record drives the capture flow: permission gating, bounded
// recording and the preview/approve/discard loop that hands an artifact to
// the uploader.
package record

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/placereel/placereel/domain"
)

// State of the recorder.
type State int

const (
	// StateIdle means the camera view is showing, ready to record.
	StateIdle State = iota
	// StateRecording means capture is in progress.
	StateRecording
	// StatePreviewing means a produced artifact is under review.
	StatePreviewing
)

// Recorder wraps the device camera, producing a local video artifact with
// a duration cap.
type Recorder struct {
	camera      domain.Camera
	settings    domain.SystemSettings
	maxDuration time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	state    State
	artifact domain.Artifact
}

// NewRecorder creates a recorder with the given duration cap.
func NewRecorder(camera domain.Camera, settings domain.SystemSettings, maxDuration time.Duration, logger *slog.Logger) *Recorder {
	return &Recorder{
		camera:      camera,
		settings:    settings,
		maxDuration: maxDuration,
		logger:      logger,
	}
}

// State returns the current recorder state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// CheckPermissions makes sure camera and microphone are both granted,
// prompting for whichever is still askable. A permanently denied
// permission is returned as a PermissionError; the shell surfaces it with
// the settings redirect instead of the capture UI.
func (r *Recorder) CheckPermissions(ctx context.Context) error {
	if r.camera.CameraPermission() == domain.PermissionAskable ||
		r.camera.MicrophonePermission() == domain.PermissionAskable {
		if err := r.camera.RequestPermissions(ctx); err != nil {
			return fmt.Errorf("request capture permissions: %w", err)
		}
	}
	if r.camera.CameraPermission() != domain.PermissionGranted {
		return &domain.PermissionError{Resource: "camera"}
	}
	if r.camera.MicrophonePermission() != domain.PermissionGranted {
		return &domain.PermissionError{Resource: "microphone"}
	}
	return nil
}

// OpenSettings redirects to the system settings app.
func (r *Recorder) OpenSettings() {
	if r.settings != nil {
		r.settings.Open()
	}
}

// Record captures video until Stop is called or the duration cap elapses,
// then moves to StatePreviewing with the produced artifact. It blocks for
// the length of the recording.
func (r *Recorder) Record(ctx context.Context) error {
	if err := r.CheckPermissions(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return fmt.Errorf("cannot record while %s", r.stateName())
	}
	r.state = StateRecording
	r.mu.Unlock()

	artifact, err := r.camera.Record(ctx, r.maxDuration)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.state = StateIdle
		return fmt.Errorf("record video: %w", err)
	}
	r.state = StatePreviewing
	r.artifact = artifact
	r.logger.Info("recording produced", "path", artifact.Path, "duration", artifact.Duration)
	return nil
}

// Stop ends an in-progress recording early. The pending Record call
// returns with the artifact captured so far.
func (r *Recorder) Stop() {
	r.mu.Lock()
	recording := r.state == StateRecording
	r.mu.Unlock()
	if recording {
		r.camera.StopRecording()
	}
}

// Artifact returns the artifact under preview, if any.
func (r *Recorder) Artifact() (domain.Artifact, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.artifact, r.state == StatePreviewing
}

// Discard deletes the previewed artifact and returns to the camera.
func (r *Recorder) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePreviewing {
		return
	}
	r.state = StateIdle
	r.artifact = domain.Artifact{}
}

// Approve hands the previewed artifact off for upload and returns the
// recorder to idle.
func (r *Recorder) Approve() (domain.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePreviewing {
		return domain.Artifact{}, fmt.Errorf("no artifact to approve")
	}
	artifact := r.artifact
	r.state = StateIdle
	r.artifact = domain.Artifact{}
	return artifact, nil
}

func (r *Recorder) stateName() string {
	switch r.state {
	case StateRecording:
		return "recording"
	case StatePreviewing:
		return "previewing"
	}
	return "idle"
}
