package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/placereel/placereel/domain"
)

// rawFeature is a single entry of the feed response before its media
// reference is resolved.
type rawFeature struct {
	ID          string  `json:"id"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Address     string  `json:"address,omitempty"`
	Purpose     string  `json:"purpose,omitempty"`
	DisplayName string  `json:"display_name"`
	Rank        int     `json:"rank"`
	Distance    string  `json:"distance"`
	PostedAt    int64   `json:"posted_at"`
	VideoRef    string  `json:"video_ref"`
}

type feedResponse struct {
	Features []rawFeature `json:"features"`
}

// Fetcher retrieves geo-filtered feed pages and resolves each entry into a
// playable MediaItem.
type Fetcher struct {
	client   *Client
	resolver domain.MediaResolver
	logger   *slog.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(client *Client, resolver domain.MediaResolver, logger *slog.Logger) *Fetcher {
	return &Fetcher{client: client, resolver: resolver, logger: logger}
}

// FetchPage requests one page of videos around origin. The cursor is the
// last item id of the previous page; empty means the first page. A purpose
// filter narrows the query when non-empty.
//
// An item whose storage reference cannot be resolved to a playable URL is
// logged and dropped; one bad item never sinks the page. The returned
// cursor still advances past dropped items so paging cannot stall.
func (f *Fetcher) FetchPage(ctx context.Context, origin domain.GeoPoint, cursor, purpose string) (*domain.FeedPage, error) {
	if origin.IsZero() {
		return nil, domain.ErrLocationUnavailable
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(origin.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(origin.Longitude, 'f', -1, 64))
	if cursor != "" {
		q.Set("current_video", cursor)
	}
	if purpose != "" {
		q.Set("purpose", purpose)
	}

	var resp feedResponse
	if err := f.client.get(ctx, "/videos/", q, &resp); err != nil {
		return nil, fmt.Errorf("fetch feed page: %w", err)
	}

	page := &domain.FeedPage{}
	for _, feat := range resp.Features {
		playURL, err := f.resolver.Resolve(ctx, feat.VideoRef)
		if err != nil {
			f.logger.Warn("dropping item with unresolvable media",
				"id", feat.ID,
				"error", err,
			)
			continue
		}
		page.Items = append(page.Items, domain.MediaItem{
			ID:          feat.ID,
			Location:    domain.GeoPoint{Latitude: feat.Latitude, Longitude: feat.Longitude},
			Address:     feat.Address,
			Purpose:     feat.Purpose,
			CreatorName: feat.DisplayName,
			CreatorRank: feat.Rank,
			Distance:    feat.Distance,
			PostedAt:    time.Unix(feat.PostedAt, 0).UTC(),
			PlayURL:     playURL,
		})
	}
	if n := len(resp.Features); n > 0 {
		page.Cursor = resp.Features[n-1].ID
	}
	return page, nil
}
