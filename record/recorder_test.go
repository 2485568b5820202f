package record

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placereel/placereel/domain"
)

// fakeCamera simulates the device capture service. grantOnRequest flips
// both permissions to granted when the prompt is shown.
type fakeCamera struct {
	camera         domain.PermissionState
	mic            domain.PermissionState
	grantOnRequest bool
	prompts        int

	artifact domain.Artifact
	err      error
	maxSeen  time.Duration
	stop     chan struct{}
}

func (c *fakeCamera) CameraPermission() domain.PermissionState     { return c.camera }
func (c *fakeCamera) MicrophonePermission() domain.PermissionState { return c.mic }

func (c *fakeCamera) RequestPermissions(ctx context.Context) error {
	c.prompts++
	if c.grantOnRequest {
		c.camera = domain.PermissionGranted
		c.mic = domain.PermissionGranted
	} else {
		c.camera = domain.PermissionDenied
		c.mic = domain.PermissionDenied
	}
	return nil
}

func (c *fakeCamera) Record(ctx context.Context, maxDuration time.Duration) (domain.Artifact, error) {
	c.maxSeen = maxDuration
	if c.stop != nil {
		<-c.stop
	}
	return c.artifact, c.err
}

func (c *fakeCamera) StopRecording() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

type fakeSettings struct{ opened int }

func (s *fakeSettings) Open() { s.opened++ }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func grantedCamera() *fakeCamera {
	return &fakeCamera{
		camera:   domain.PermissionGranted,
		mic:      domain.PermissionGranted,
		artifact: domain.Artifact{Path: "/tmp/clip.mov", Size: 1 << 20, Duration: 12 * time.Second},
	}
}

func TestCheckPermissionsPromptsWhenAskable(t *testing.T) {
	camera := &fakeCamera{
		camera:         domain.PermissionAskable,
		mic:            domain.PermissionAskable,
		grantOnRequest: true,
	}
	r := NewRecorder(camera, &fakeSettings{}, 30*time.Second, testLogger())

	require.NoError(t, r.CheckPermissions(context.Background()))
	assert.Equal(t, 1, camera.prompts)
}

func TestCheckPermissionsDenied(t *testing.T) {
	camera := &fakeCamera{camera: domain.PermissionDenied, mic: domain.PermissionGranted}
	settings := &fakeSettings{}
	r := NewRecorder(camera, settings, 30*time.Second, testLogger())

	err := r.CheckPermissions(context.Background())
	var perm *domain.PermissionError
	require.ErrorAs(t, err, &perm)
	assert.Equal(t, "camera", perm.Resource)
	assert.Zero(t, camera.prompts, "a permanently denied permission must not be re-prompted")

	r.OpenSettings()
	assert.Equal(t, 1, settings.opened)
}

func TestMicrophoneDeniedBlocksRecording(t *testing.T) {
	camera := &fakeCamera{camera: domain.PermissionGranted, mic: domain.PermissionDenied}
	r := NewRecorder(camera, &fakeSettings{}, 30*time.Second, testLogger())

	err := r.Record(context.Background())
	var perm *domain.PermissionError
	require.ErrorAs(t, err, &perm)
	assert.Equal(t, "microphone", perm.Resource)
	assert.Equal(t, StateIdle, r.State())
}

func TestRecordProducesPreview(t *testing.T) {
	camera := grantedCamera()
	r := NewRecorder(camera, &fakeSettings{}, 30*time.Second, testLogger())

	require.NoError(t, r.Record(context.Background()))
	assert.Equal(t, 30*time.Second, camera.maxSeen, "the duration cap must reach the device")
	assert.Equal(t, StatePreviewing, r.State())

	artifact, ok := r.Artifact()
	require.True(t, ok)
	assert.Equal(t, "/tmp/clip.mov", artifact.Path)
}

func TestStopEndsRecordingEarly(t *testing.T) {
	camera := grantedCamera()
	camera.stop = make(chan struct{})
	r := NewRecorder(camera, &fakeSettings{}, 30*time.Second, testLogger())

	done := make(chan error, 1)
	go func() { done <- r.Record(context.Background()) }()

	for r.State() != StateRecording {
	}
	r.Stop()

	require.NoError(t, <-done)
	assert.Equal(t, StatePreviewing, r.State())
}

func TestDiscardReturnsToIdle(t *testing.T) {
	r := NewRecorder(grantedCamera(), &fakeSettings{}, 30*time.Second, testLogger())
	require.NoError(t, r.Record(context.Background()))

	r.Discard()
	assert.Equal(t, StateIdle, r.State())
	_, ok := r.Artifact()
	assert.False(t, ok)
}

func TestApproveHandsOffArtifact(t *testing.T) {
	r := NewRecorder(grantedCamera(), &fakeSettings{}, 30*time.Second, testLogger())
	require.NoError(t, r.Record(context.Background()))

	artifact, err := r.Approve()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/clip.mov", artifact.Path)
	assert.Equal(t, StateIdle, r.State())

	_, err = r.Approve()
	require.Error(t, err, "nothing is left to approve")
}

func TestRecordFailureReturnsToIdle(t *testing.T) {
	camera := grantedCamera()
	camera.err = fmt.Errorf("encoder crashed")
	r := NewRecorder(camera, &fakeSettings{}, 30*time.Second, testLogger())

	require.Error(t, r.Record(context.Background()))
	assert.Equal(t, StateIdle, r.State())
	_, ok := r.Artifact()
	assert.False(t, ok)
}
