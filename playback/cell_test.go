package playback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// fakePlayer records calls and simulates the live playing status.
type fakePlayer struct {
	playing  bool
	plays    int
	stops    int
	unloads  int
	failNext bool
}

func (p *fakePlayer) Playing(ctx context.Context) (bool, error) {
	return p.playing, nil
}

func (p *fakePlayer) Play(ctx context.Context) error {
	if p.failNext {
		p.failNext = false
		return fmt.Errorf("decoder error")
	}
	p.plays++
	p.playing = true
	return nil
}

func (p *fakePlayer) Stop(ctx context.Context) error {
	p.stops++
	p.playing = false
	return nil
}

func (p *fakePlayer) Unload(ctx context.Context) error {
	p.unloads++
	p.playing = false
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPlayIsIdempotent(t *testing.T) {
	player := &fakePlayer{}
	cell := NewCell("v1", player, testLogger())
	ctx := context.Background()

	cell.Play(ctx)
	cell.Play(ctx)
	cell.Play(ctx)

	assert.Equal(t, 1, player.plays, "play must no-op while already playing")
}

func TestStopIsIdempotent(t *testing.T) {
	player := &fakePlayer{}
	cell := NewCell("v1", player, testLogger())
	ctx := context.Background()

	cell.Stop(ctx)
	assert.Zero(t, player.stops, "stop must no-op when not playing")

	cell.Play(ctx)
	cell.Stop(ctx)
	cell.Stop(ctx)
	assert.Equal(t, 1, player.stops)
}

func TestUnloadThenPlayAndStopNoOp(t *testing.T) {
	player := &fakePlayer{}
	cell := NewCell("v1", player, testLogger())
	ctx := context.Background()

	cell.Unload(ctx)
	assert.Equal(t, 1, player.unloads)

	// the handle is gone; nothing below may touch the player or panic
	cell.Play(ctx)
	cell.Stop(ctx)
	cell.Unload(ctx)
	cell.Toggle(ctx)

	assert.Zero(t, player.plays)
	assert.Equal(t, 1, player.unloads)
}

func TestNilHandleIsSafe(t *testing.T) {
	cell := NewCell("v1", nil, testLogger())
	ctx := context.Background()

	cell.Play(ctx)
	cell.Stop(ctx)
	cell.Unload(ctx)
	cell.Toggle(ctx)
}

func TestPlaybackErrorsAreSwallowed(t *testing.T) {
	player := &fakePlayer{failNext: true}
	cell := NewCell("v1", player, testLogger())

	cell.Play(context.Background())
	assert.Zero(t, player.plays, "failed play is logged, not retried or propagated")
}

func TestToggleFlipsState(t *testing.T) {
	player := &fakePlayer{}
	cell := NewCell("v1", player, testLogger())
	ctx := context.Background()

	cell.Toggle(ctx)
	assert.True(t, player.playing)
	cell.Toggle(ctx)
	assert.False(t, player.playing)
}
