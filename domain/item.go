package domain

import "time"

// GeoPoint is a WGS84 coordinate pair. The zero value means "no location".
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

// IsZero reports whether the point carries no resolved location.
func (p GeoPoint) IsZero() bool {
	return p == GeoPoint{}
}

// MediaItem is a single playable post in the feed. The PlayURL is always
// resolved before the item reaches a playback cell; raw storage references
// never leave the fetcher.
type MediaItem struct {
	ID          string
	Location    GeoPoint
	Address     string
	Purpose     string
	CreatorName string
	CreatorRank int
	Distance    string
	PostedAt    time.Time
	PlayURL     string
}

// FeedPage is one ordered slice of the feed plus the cursor for the next
// page request. Pages are concatenated append-only by the list controller;
// the client never de-duplicates, that is the backend's cursor contract.
type FeedPage struct {
	Items  []MediaItem
	Cursor string
}
