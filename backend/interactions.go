package backend

import (
	"context"
	"net/url"

	"github.com/placereel/placereel/domain"
)

type removedResponse struct {
	Removed []string `json:"removed"`
}

// MarkWent records that the user went to the place shown in the video.
func (c *Client) MarkWent(ctx context.Context, id string) error {
	return c.patch(ctx, "/videos/"+url.PathEscape(id)+"/went/", nil, nil)
}

// HideVideo hides the video from the user's feed.
func (c *Client) HideVideo(ctx context.Context, id string) error {
	return c.patch(ctx, "/videos/"+url.PathEscape(id)+"/hide/", nil, nil)
}

// ReportVideo reports the video for review.
func (c *Client) ReportVideo(ctx context.Context, id string) error {
	return c.patch(ctx, "/videos/"+url.PathEscape(id)+"/report/", nil, nil)
}

type attachLocationBody struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

// AttachVideoLocation associates the final location metadata with an
// uploaded video record. It runs as the follow-up step after the byte
// transfer completes.
func (c *Client) AttachVideoLocation(ctx context.Context, id string, meta domain.UploadMetadata) error {
	body := attachLocationBody{
		Latitude:  meta.Location.Latitude,
		Longitude: meta.Location.Longitude,
		Address:   meta.Address,
	}
	return c.patch(ctx, "/videos/"+url.PathEscape(id)+"/location/", body, nil)
}

// BlockCreator blocks the video's creator and returns the ids of all of
// their posts, so the caller can drop every one of them from the feed.
func (c *Client) BlockCreator(ctx context.Context, id string) ([]string, error) {
	var resp removedResponse
	if err := c.patch(ctx, "/videos/"+url.PathEscape(id)+"/block/", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Removed, nil
}
