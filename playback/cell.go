// Package playback owns the per-item media lifecycle. One Cell exists per
// visible or near-visible feed item; playback failures are logged and never
// propagate past the cell.
package playback

import (
	"context"
	"log/slog"

	"github.com/placereel/placereel/domain"
)

// Cell controls the playback handle of a single feed item. All methods are
// idempotent and safe to call before the handle exists or after Unload.
type Cell struct {
	id     string
	player domain.Player
	logger *slog.Logger
}

// NewCell creates a cell around the given handle. player may be nil while
// the media engine is still loading; every method no-ops in that case.
func NewCell(id string, player domain.Player, logger *slog.Logger) *Cell {
	return &Cell{id: id, player: player, logger: logger}
}

// ID returns the feed item id this cell plays.
func (c *Cell) ID() string {
	return c.id
}

// Play starts playback. The playing check is a live status query rather
// than cached local state, so externally driven state changes cannot race
// it.
func (c *Cell) Play(ctx context.Context) {
	if c.player == nil {
		return
	}
	playing, err := c.player.Playing(ctx)
	if err != nil {
		c.logger.Warn("playback status query failed", "id", c.id, "error", err)
		return
	}
	if playing {
		return
	}
	if err := c.player.Play(ctx); err != nil {
		c.logger.Warn("play failed", "id", c.id, "error", err)
	}
}

// Stop halts playback and rewinds to the start.
func (c *Cell) Stop(ctx context.Context) {
	if c.player == nil {
		return
	}
	playing, err := c.player.Playing(ctx)
	if err != nil {
		c.logger.Warn("playback status query failed", "id", c.id, "error", err)
		return
	}
	if !playing {
		return
	}
	if err := c.player.Stop(ctx); err != nil {
		c.logger.Warn("stop failed", "id", c.id, "error", err)
	}
}

// Toggle flips between playing and stopped, driven by a user tap.
func (c *Cell) Toggle(ctx context.Context) {
	if c.player == nil {
		return
	}
	playing, err := c.player.Playing(ctx)
	if err != nil {
		c.logger.Warn("playback status query failed", "id", c.id, "error", err)
		return
	}
	if playing {
		if err := c.player.Stop(ctx); err != nil {
			c.logger.Warn("stop failed", "id", c.id, "error", err)
		}
		return
	}
	if err := c.player.Play(ctx); err != nil {
		c.logger.Warn("play failed", "id", c.id, "error", err)
	}
}

// Unload releases the decoder to bound memory use once the cell scrolls
// far off-screen. It must be called on teardown; afterwards Play and Stop
// no-op.
func (c *Cell) Unload(ctx context.Context) {
	if c.player == nil {
		return
	}
	if err := c.player.Unload(ctx); err != nil {
		c.logger.Warn("unload failed", "id", c.id, "error", err)
	}
	c.player = nil
}
