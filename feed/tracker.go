package feed

import (
	"context"
	"log/slog"
)

// VisibilityChange is one entry of an on-screen visibility batch reported
// by the list view.
type VisibilityChange struct {
	ID       string
	Visible  bool
	Coverage float64 // fraction of the viewport the item covers
}

// Tracker turns visibility batches into play/stop commands. An item plays
// when it crosses the coverage threshold into view and stops when it
// leaves. Only the dominant visible item may play at any time; the tracker
// enforces that directly by stopping every other mounted cell on each
// batch instead of trusting the threshold configuration alone.
type Tracker struct {
	threshold float64
	registry  *Registry
	logger    *slog.Logger

	visible  map[string]bool
	dominant string
}

// NewTracker creates a tracker over the given cell registry.
func NewTracker(threshold float64, registry *Registry, logger *slog.Logger) *Tracker {
	return &Tracker{
		threshold: threshold,
		registry:  registry,
		logger:    logger,
		visible:   make(map[string]bool),
	}
}

// Observe processes one visibility batch. Each item gets at most one
// transition per batch: repeated entries for an id that is already in its
// reported state are progress updates and do not restart playback.
func (t *Tracker) Observe(ctx context.Context, changes []VisibilityChange) {
	for _, ch := range changes {
		vis := ch.Visible && ch.Coverage >= t.threshold
		if t.visible[ch.ID] == vis {
			continue
		}
		t.visible[ch.ID] = vis

		if vis {
			t.dominant = ch.ID
			if h := t.registry.Get(ch.ID); h != nil {
				h.Play(ctx)
			}
		} else {
			if t.dominant == ch.ID {
				t.dominant = ""
			}
			if h := t.registry.Get(ch.ID); h != nil {
				h.Stop(ctx)
			}
		}
	}

	// pause-all-but-current: whatever the list reported, only the
	// dominant item may keep playing
	dominant := t.dominant
	t.registry.Each(func(id string, h CellHandle) {
		if id != dominant {
			h.Stop(ctx)
		}
	})
}

// Forget drops the tracked state for an item that left the feed.
func (t *Tracker) Forget(id string) {
	delete(t.visible, id)
	if t.dominant == id {
		t.dominant = ""
	}
}
