package feed

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placereel/placereel/domain"
)

// fakeFetcher serves scripted pages keyed by cursor and records every
// request it sees.
type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]*domain.FeedPage
	err      error
	requests []string // cursors, in order
	block    chan struct{}
}

func (f *fakeFetcher) FetchPage(ctx context.Context, origin domain.GeoPoint, cursor, purpose string) (*domain.FeedPage, error) {
	f.mu.Lock()
	f.requests = append(f.requests, cursor)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.err != nil {
		return nil, f.err
	}
	page, ok := f.pages[cursor]
	if !ok {
		return &domain.FeedPage{}, nil
	}
	return page, nil
}

type fakeLocator struct {
	point        domain.GeoPoint
	err          error
	settingsOpen int
}

func (l *fakeLocator) Current(ctx context.Context) (domain.GeoPoint, error) {
	if l.err != nil {
		return domain.GeoPoint{}, l.err
	}
	return l.point, nil
}

func (l *fakeLocator) OpenSettings() { l.settingsOpen++ }

type fakeInteractions struct {
	went     []string
	hidden   []string
	reported []string
	blocked  []string
	removed  []string
	err      error
}

func (i *fakeInteractions) MarkWent(ctx context.Context, id string) error {
	i.went = append(i.went, id)
	return i.err
}

func (i *fakeInteractions) HideVideo(ctx context.Context, id string) error {
	i.hidden = append(i.hidden, id)
	return i.err
}

func (i *fakeInteractions) ReportVideo(ctx context.Context, id string) error {
	i.reported = append(i.reported, id)
	return i.err
}

func (i *fakeInteractions) BlockCreator(ctx context.Context, id string) ([]string, error) {
	i.blocked = append(i.blocked, id)
	return i.removed, i.err
}

func items(ids ...string) []domain.MediaItem {
	out := make([]domain.MediaItem, len(ids))
	for n, id := range ids {
		out[n] = domain.MediaItem{ID: id, PlayURL: "https://media.example/" + id + ".mp4"}
	}
	return out
}

func newReadyController(t *testing.T, fetcher *fakeFetcher) *Controller {
	t.Helper()
	loc := &fakeLocator{point: domain.GeoPoint{Latitude: 59.3, Longitude: 18.1}}
	c := NewController(fetcher, loc, &fakeInteractions{}, 0.5, nil, testLogger())
	require.NoError(t, c.Start(context.Background()))
	require.Equal(t, StateReady, c.State())
	return c
}

func TestStartLoadsFirstPage(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*domain.FeedPage{
		"": {Items: items("v1", "v2"), Cursor: "v2"},
	}}
	var scrolledToTop int
	loc := &fakeLocator{point: domain.GeoPoint{Latitude: 1, Longitude: 2}}
	c := NewController(fetcher, loc, &fakeInteractions{}, 0.5, func() { scrolledToTop++ }, testLogger())

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, StateReady, c.State())
	assert.Len(t, c.Items(), 2)
	assert.Equal(t, 1, scrolledToTop, "first-page load must reset the scroll position")
}

func TestDeniedLocationNeverFetches(t *testing.T) {
	fetcher := &fakeFetcher{}
	loc := &fakeLocator{err: &domain.PermissionError{Resource: "location"}}
	c := NewController(fetcher, loc, &fakeInteractions{}, 0.5, nil, testLogger())

	err := c.Start(context.Background())
	var perm *domain.PermissionError
	require.ErrorAs(t, err, &perm)
	assert.Equal(t, StateLocationDenied, c.State())
	assert.Empty(t, fetcher.requests, "no feed request may be issued without a location")

	// the denied screen's only affordance is the settings redirect
	c.OpenLocationSettings()
	assert.Equal(t, 1, loc.settingsOpen)

	// and other entry points stay inert
	require.NoError(t, c.Refresh(context.Background()))
	require.NoError(t, c.LoadMore(context.Background()))
	assert.Empty(t, fetcher.requests)
}

func TestSettingsRedirectOnlyWhenDenied(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*domain.FeedPage{"": {Items: items("v1")}}}
	loc := &fakeLocator{point: domain.GeoPoint{Latitude: 1, Longitude: 2}}
	c := NewController(fetcher, loc, &fakeInteractions{}, 0.5, nil, testLogger())
	require.NoError(t, c.Start(context.Background()))

	c.OpenLocationSettings()
	assert.Zero(t, loc.settingsOpen)
}

func TestTransientLocationFailureStaysInitializing(t *testing.T) {
	fetcher := &fakeFetcher{}
	loc := &fakeLocator{err: domain.ErrLocationUnavailable}
	c := NewController(fetcher, loc, &fakeInteractions{}, 0.5, nil, testLogger())

	require.Error(t, c.Start(context.Background()))
	assert.Equal(t, StateInitializing, c.State())

	// the shell retries once the fix comes in
	loc.err = nil
	loc.point = domain.GeoPoint{Latitude: 1, Longitude: 2}
	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, StateReady, c.State())
}

func TestLoadMoreAppendsAndAdvancesCursor(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*domain.FeedPage{
		"":   {Items: items("v1", "v2"), Cursor: "v2"},
		"v2": {Items: items("v3"), Cursor: "v3"},
	}}
	c := newReadyController(t, fetcher)

	require.NoError(t, c.LoadMore(context.Background()))
	got := c.Items()
	require.Len(t, got, 3)
	assert.Equal(t, "v3", got[2].ID)
	assert.Equal(t, []string{"", "v2"}, fetcher.requests)
}

func TestLoadMoreSuppressedWithoutCursor(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*domain.FeedPage{
		"": {Items: items("v1")}, // no cursor: single page
	}}
	c := newReadyController(t, fetcher)

	require.NoError(t, c.LoadMore(context.Background()))
	assert.Equal(t, []string{""}, fetcher.requests)
}

func TestDuplicateLoadMoreSuppressed(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*domain.FeedPage{
		"":   {Items: items("v1"), Cursor: "v1"},
		"v1": {Items: items("v2"), Cursor: "v2"},
	}}
	c := newReadyController(t, fetcher)

	block := make(chan struct{})
	fetcher.mu.Lock()
	fetcher.block = block
	fetcher.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- c.LoadMore(context.Background()) }()

	// wait for the first fetch to be in flight
	for {
		fetcher.mu.Lock()
		n := len(fetcher.requests)
		fetcher.mu.Unlock()
		if n == 2 {
			break
		}
	}

	// wiggling at the end of the list while a fetch is pending
	require.NoError(t, c.LoadMore(context.Background()))
	require.NoError(t, c.LoadMore(context.Background()))

	fetcher.mu.Lock()
	fetcher.block = nil
	fetcher.mu.Unlock()
	close(block)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"", "v1"}, fetcher.requests, "one request per cursor")
}

func TestEmptyNextPageStaysReady(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*domain.FeedPage{
		"":   {Items: items("v1"), Cursor: "v1"},
		"v1": {}, // exhausted
	}}
	c := newReadyController(t, fetcher)

	require.NoError(t, c.LoadMore(context.Background()))
	assert.Equal(t, StateReady, c.State())
	assert.Len(t, c.Items(), 1)
}

func TestSetPurposeDiscardsStaleResponse(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*domain.FeedPage{
		"": {Items: items("v1"), Cursor: "v1"},
	}}
	c := newReadyController(t, fetcher)

	block := make(chan struct{})
	fetcher.mu.Lock()
	fetcher.block = block
	fetcher.pages[""] = &domain.FeedPage{Items: items("old-1"), Cursor: "old-1"}
	fetcher.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- c.SetPurpose(context.Background(), "Shopping") }()
	for {
		fetcher.mu.Lock()
		n := len(fetcher.requests)
		fetcher.mu.Unlock()
		if n == 2 {
			break
		}
	}

	// a newer filter change lands while the Shopping response is in flight
	fetcher.mu.Lock()
	fetcher.block = nil
	fetcher.pages[""] = &domain.FeedPage{Items: items("new-1", "new-2"), Cursor: "new-2"}
	fetcher.mu.Unlock()
	require.NoError(t, c.SetPurpose(context.Background(), "Food"))

	close(block)
	require.NoError(t, <-done)

	got := c.Items()
	require.Len(t, got, 2, "the overtaken response must be discarded")
	assert.Equal(t, "new-1", got[0].ID)
}

func TestHideTombstonesItem(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*domain.FeedPage{
		"":   {Items: items("v1", "v2"), Cursor: "v2"},
		"v2": {Items: items("v2", "v3"), Cursor: "v3"}, // backend re-serves v2
	}}
	c := newReadyController(t, fetcher)

	cell := &fakeCell{}
	c.AttachCell("v2", cell)
	require.NoError(t, c.Hide(context.Background(), "v2"))

	got := c.Items()
	require.Len(t, got, 1)
	assert.Equal(t, "v1", got[0].ID)
	assert.Equal(t, 1, cell.unloads, "a removed item's cell must be torn down")

	// the tombstone holds across later pages
	require.NoError(t, c.LoadMore(context.Background()))
	got = c.Items()
	require.Len(t, got, 2)
	assert.Equal(t, "v3", got[1].ID)
}

func TestHideFailureKeepsItem(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*domain.FeedPage{
		"": {Items: items("v1")},
	}}
	loc := &fakeLocator{point: domain.GeoPoint{Latitude: 1, Longitude: 2}}
	interactions := &fakeInteractions{err: fmt.Errorf("backend down")}
	c := NewController(fetcher, loc, interactions, 0.5, nil, testLogger())
	require.NoError(t, c.Start(context.Background()))

	require.Error(t, c.Hide(context.Background(), "v1"))
	assert.Len(t, c.Items(), 1)
}

func TestBlockCreatorRemovesExactSet(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*domain.FeedPage{
		"": {Items: items("v1", "v2", "v3", "v4")},
	}}
	loc := &fakeLocator{point: domain.GeoPoint{Latitude: 1, Longitude: 2}}
	interactions := &fakeInteractions{removed: []string{"v1", "v3"}}
	c := NewController(fetcher, loc, interactions, 0.5, nil, testLogger())
	require.NoError(t, c.Start(context.Background()))

	require.NoError(t, c.BlockCreator(context.Background(), "v1"))

	got := c.Items()
	require.Len(t, got, 2)
	assert.Equal(t, "v2", got[0].ID)
	assert.Equal(t, "v4", got[1].ID)
}

func TestMarkWentKeepsItem(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*domain.FeedPage{
		"": {Items: items("v1")},
	}}
	c := newReadyController(t, fetcher)

	require.NoError(t, c.MarkWent(context.Background(), "v1"))
	assert.Len(t, c.Items(), 1)
}
