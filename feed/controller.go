// Package feed composes the page fetcher, the viewability tracker and the
// per-item playback cells into the scrollable, location-filtered feed.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/placereel/placereel/domain"
)

// State of the feed list controller.
type State int

const (
	// StateInitializing means no location has been resolved yet.
	StateInitializing State = iota
	// StateLocationDenied is terminal until the user flips the permission
	// in the system settings.
	StateLocationDenied
	// StateLoadingFirstPage means the initial fetch is in flight.
	StateLoadingFirstPage
	// StateReady means the feed is displayed with at least zero items.
	StateReady
	// StateLoadingNextPage means a scroll-end fetch is in flight.
	StateLoadingNextPage
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateLocationDenied:
		return "locationDenied"
	case StateLoadingFirstPage:
		return "loadingFirstPage"
	case StateReady:
		return "ready"
	case StateLoadingNextPage:
		return "loadingNextPage"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Fetcher is the page source. backend.Fetcher satisfies it.
type Fetcher interface {
	FetchPage(ctx context.Context, origin domain.GeoPoint, cursor, purpose string) (*domain.FeedPage, error)
}

// Locator resolves the viewer position and the settings redirect.
// geo.Provider satisfies it.
type Locator interface {
	Current(ctx context.Context) (domain.GeoPoint, error)
	OpenSettings()
}

// Interactions are the per-video backend actions. backend.Client
// satisfies it.
type Interactions interface {
	MarkWent(ctx context.Context, id string) error
	HideVideo(ctx context.Context, id string) error
	ReportVideo(ctx context.Context, id string) error
	BlockCreator(ctx context.Context, id string) ([]string, error)
}

// Controller drives one feed screen: location gating, paginated fetching,
// viewability playback and client-side tombstones for hidden content.
//
// The in-memory item list is mutated only by the controller; cells mutate
// only their own playback handle.
type Controller struct {
	fetcher      Fetcher
	location     Locator
	interactions Interactions
	logger       *slog.Logger

	registry *Registry
	tracker  *Tracker

	// onFirstPage, when set, is invoked after every successful first-page
	// load so the shell can force the scroll position back to index 0.
	onFirstPage func()

	mu         sync.Mutex
	state      State
	origin     domain.GeoPoint
	items      []domain.MediaItem
	cursor     string
	purpose    string
	generation int
	inflight   bool
	removed    map[string]struct{}
}

// NewController creates a feed controller. threshold is the viewability
// coverage fraction; onFirstPage may be nil.
func NewController(fetcher Fetcher, location Locator, interactions Interactions, threshold float64, onFirstPage func(), logger *slog.Logger) *Controller {
	registry := NewRegistry()
	return &Controller{
		fetcher:      fetcher,
		location:     location,
		interactions: interactions,
		logger:       logger,
		registry:     registry,
		tracker:      NewTracker(threshold, registry, logger),
		onFirstPage:  onFirstPage,
		removed:      make(map[string]struct{}),
	}
}

// State returns the current controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Items returns a snapshot of the in-memory feed.
func (c *Controller) Items() []domain.MediaItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]domain.MediaItem, len(c.items))
	copy(items, c.items)
	return items
}

// Start resolves the viewer location and loads the first page. A
// permanently denied location permission moves the controller to
// StateLocationDenied without issuing any fetch; transient location
// failures leave it in StateInitializing so the shell can retry.
func (c *Controller) Start(ctx context.Context) error {
	origin, err := c.location.Current(ctx)
	if err != nil {
		var perm *domain.PermissionError
		if errors.As(err, &perm) {
			c.mu.Lock()
			c.state = StateLocationDenied
			c.mu.Unlock()
			return err
		}
		return fmt.Errorf("resolve location: %w", err)
	}

	c.mu.Lock()
	if c.state == StateLocationDenied {
		c.mu.Unlock()
		return nil
	}
	c.origin = origin
	c.mu.Unlock()

	return c.loadFirstPage(ctx)
}

// OpenLocationSettings redirects to the system settings. It only acts in
// StateLocationDenied; that state's sole affordance is the redirect.
func (c *Controller) OpenLocationSettings() {
	if c.State() == StateLocationDenied {
		c.location.OpenSettings()
	}
}

// SetPurpose changes the purpose filter, empties the feed and reloads from
// the first page. Any response of an older query is discarded when it
// arrives.
func (c *Controller) SetPurpose(ctx context.Context, purpose string) error {
	c.mu.Lock()
	if c.state == StateInitializing || c.state == StateLocationDenied {
		c.mu.Unlock()
		return nil
	}
	c.purpose = purpose
	c.mu.Unlock()
	return c.loadFirstPage(ctx)
}

// Refresh reloads the feed from the first page keeping the current filter.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateInitializing || c.state == StateLocationDenied {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.loadFirstPage(ctx)
}

func (c *Controller) loadFirstPage(ctx context.Context) error {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.state = StateLoadingFirstPage
	c.items = nil
	c.cursor = ""
	c.inflight = false
	c.removed = make(map[string]struct{})
	origin, purpose := c.origin, c.purpose
	c.mu.Unlock()

	page, err := c.fetcher.FetchPage(ctx, origin, "", purpose)

	c.mu.Lock()
	if gen != c.generation {
		// a newer query overtook this one; drop the response
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.state = StateReady
		c.mu.Unlock()
		return err
	}
	c.items = page.Items
	c.cursor = page.Cursor
	c.state = StateReady
	notify := c.onFirstPage
	c.mu.Unlock()

	if notify != nil {
		notify()
	}
	return nil
}

// LoadMore fetches the next page when the scroll position nears the end.
// It is a no-op unless the controller is StateReady, and a repeat call for
// a cursor that is already being fetched is suppressed, so a user wiggling
// at the end of the list cannot issue duplicate requests.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateReady || c.inflight || c.cursor == "" {
		c.mu.Unlock()
		return nil
	}
	c.inflight = true
	c.state = StateLoadingNextPage
	gen := c.generation
	origin, cursor, purpose := c.origin, c.cursor, c.purpose
	c.mu.Unlock()

	page, err := c.fetcher.FetchPage(ctx, origin, cursor, purpose)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return nil
	}
	c.inflight = false
	c.state = StateReady
	if err != nil {
		return err
	}
	if len(page.Items) == 0 && page.Cursor == "" {
		// nothing further; stay ready, the next scroll re-triggers
		return nil
	}

	// append-only concatenation; tombstoned items never come back
	for _, item := range page.Items {
		if _, gone := c.removed[item.ID]; gone {
			continue
		}
		c.items = append(c.items, item)
	}
	if page.Cursor != "" {
		c.cursor = page.Cursor
	}
	return nil
}

// Observe forwards a visibility batch to the tracker.
func (c *Controller) Observe(ctx context.Context, changes []VisibilityChange) {
	c.tracker.Observe(ctx, changes)
}

// AttachCell registers a mounted cell handle for an item.
func (c *Controller) AttachCell(id string, h CellHandle) {
	c.registry.Attach(id, h)
}

// DetachCell unloads and removes the handle for an unmounted cell.
func (c *Controller) DetachCell(ctx context.Context, id string) {
	c.registry.Detach(ctx, id)
	c.tracker.Forget(id)
}

// MarkWent records a went interaction. The item stays in the feed.
func (c *Controller) MarkWent(ctx context.Context, id string) error {
	return c.interactions.MarkWent(ctx, id)
}

// Hide hides the video on the backend and tombstones it locally.
func (c *Controller) Hide(ctx context.Context, id string) error {
	if err := c.interactions.HideVideo(ctx, id); err != nil {
		return err
	}
	c.remove(ctx, id)
	return nil
}

// Report reports the video and tombstones it locally.
func (c *Controller) Report(ctx context.Context, id string) error {
	if err := c.interactions.ReportVideo(ctx, id); err != nil {
		return err
	}
	c.remove(ctx, id)
	return nil
}

// BlockCreator blocks the video's creator and tombstones exactly the id
// set the backend returns.
func (c *Controller) BlockCreator(ctx context.Context, id string) error {
	removed, err := c.interactions.BlockCreator(ctx, id)
	if err != nil {
		return err
	}
	c.remove(ctx, removed...)
	return nil
}

// remove tombstones the given ids, drops them from the in-memory feed and
// tears down their cells. Tombstoned ids are never re-added without a full
// reload.
func (c *Controller) remove(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}

	c.mu.Lock()
	gone := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		gone[id] = struct{}{}
		c.removed[id] = struct{}{}
	}
	kept := c.items[:0]
	for _, item := range c.items {
		if _, ok := gone[item.ID]; !ok {
			kept = append(kept, item)
		}
	}
	c.items = kept
	c.mu.Unlock()

	for _, id := range ids {
		c.registry.Detach(ctx, id)
		c.tracker.Forget(id)
	}
}
