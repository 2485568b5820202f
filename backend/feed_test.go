package backend

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placereel/placereel/domain"
)

// fakeResolver resolves refs to URLs, failing the refs listed in fail.
type fakeResolver struct {
	fail map[string]bool
}

func (f *fakeResolver) Resolve(ctx context.Context, ref string) (string, error) {
	if f.fail[ref] {
		return "", fmt.Errorf("reference %s not found", ref)
	}
	return "https://media.example/" + ref + ".mp4", nil
}

func feature(id string) map[string]any {
	return map[string]any{
		"id":           id,
		"latitude":     59.3,
		"longitude":    18.1,
		"display_name": "ada",
		"rank":         3,
		"distance":     "120m",
		"posted_at":    1700000000,
		"video_ref":    "ref-" + id,
	}
}

func TestFetchPageRequiresLocation(t *testing.T) {
	client, tokens, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should be issued without a location")
	}))
	f := NewFetcher(client, &fakeResolver{}, testLogger())

	_, err := f.FetchPage(context.Background(), domain.GeoPoint{}, "", "")
	require.ErrorIs(t, err, domain.ErrLocationUnavailable)
	assert.Zero(t, tokens.calls)
}

func TestFetchPageQueryParams(t *testing.T) {
	var gotQuery map[string]string
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		writeJSON(w, http.StatusOK, map[string]any{"features": []any{feature("v1"), feature("v2")}})
	}))
	f := NewFetcher(client, &fakeResolver{}, testLogger())

	origin := domain.GeoPoint{Latitude: 59.3, Longitude: 18.1}
	page, err := f.FetchPage(context.Background(), origin, "v0", "Shopping")
	require.NoError(t, err)

	assert.Equal(t, "59.3", gotQuery["latitude"])
	assert.Equal(t, "18.1", gotQuery["longitude"])
	assert.Equal(t, "v0", gotQuery["current_video"])
	assert.Equal(t, "Shopping", gotQuery["purpose"])

	require.Len(t, page.Items, 2)
	assert.Equal(t, "v2", page.Cursor, "cursor must be the last raw item id")
	assert.Equal(t, "https://media.example/ref-v1.mp4", page.Items[0].PlayURL)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), page.Items[0].PostedAt)
}

func TestFetchPageOmitsEmptyParams(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.False(t, q.Has("current_video"))
		assert.False(t, q.Has("purpose"))
		writeJSON(w, http.StatusOK, map[string]any{"features": []any{}})
	}))
	f := NewFetcher(client, &fakeResolver{}, testLogger())

	page, err := f.FetchPage(context.Background(), domain.GeoPoint{Latitude: 1, Longitude: 1}, "", "")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Empty(t, page.Cursor)
}

func TestFetchPageToleratesResolutionFailure(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"features": []any{feature("v1"), feature("v2"), feature("v3")},
		})
	}))
	f := NewFetcher(client, &fakeResolver{fail: map[string]bool{"ref-v2": true}}, testLogger())

	page, err := f.FetchPage(context.Background(), domain.GeoPoint{Latitude: 1, Longitude: 1}, "", "")
	require.NoError(t, err, "one unresolvable item must not fail the page")

	require.Len(t, page.Items, 2)
	assert.Equal(t, "v1", page.Items[0].ID)
	assert.Equal(t, "v3", page.Items[1].ID)
	assert.Equal(t, "v3", page.Cursor)
}

func TestFetchPageCursorAdvancesPastDroppedTail(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"features": []any{feature("v1"), feature("v2")},
		})
	}))
	f := NewFetcher(client, &fakeResolver{fail: map[string]bool{"ref-v2": true}}, testLogger())

	page, err := f.FetchPage(context.Background(), domain.GeoPoint{Latitude: 1, Longitude: 1}, "", "")
	require.NoError(t, err)
	assert.Equal(t, "v2", page.Cursor, "paging must not stall on a dropped tail item")
}

func TestFetchPageSurfacesBackendError(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream broken")
	}))
	f := NewFetcher(client, &fakeResolver{}, testLogger())

	_, err := f.FetchPage(context.Background(), domain.GeoPoint{Latitude: 1, Longitude: 1}, "", "")
	var reqErr *domain.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusBadGateway, reqErr.Status)
	assert.Equal(t, "upstream broken", reqErr.Body)
}
