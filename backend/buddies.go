package backend

import (
	"context"
	"net/url"
)

// Buddy is a mutually connected user who can be starred on a post.
type Buddy struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// BuddyRequest is a pending incoming connection request.
type BuddyRequest struct {
	ID                string `json:"id"`
	SenderDisplayName string `json:"sender_display_name"`
}

// Buddies lists the user's current buddies.
func (c *Client) Buddies(ctx context.Context) ([]Buddy, error) {
	var buddies []Buddy
	if err := c.get(ctx, "/buddies/", nil, &buddies); err != nil {
		return nil, err
	}
	return buddies, nil
}

// RemoveBuddy severs the connection with the named buddy.
func (c *Client) RemoveBuddy(ctx context.Context, username string) error {
	return c.patch(ctx, "/buddies/"+url.PathEscape(username)+"/remove/", nil, nil)
}

// BlockBuddy severs the connection and prevents future requests.
func (c *Client) BlockBuddy(ctx context.Context, username string) error {
	return c.patch(ctx, "/buddies/"+url.PathEscape(username)+"/block/", nil, nil)
}

// SendBuddyRequest sends a connection request to the user with the given
// display name.
func (c *Client) SendBuddyRequest(ctx context.Context, displayName string) error {
	return c.post(ctx, "/buddy-request/", displayNameBody{DisplayName: displayName}, nil)
}

// BuddyRequests lists pending incoming requests.
func (c *Client) BuddyRequests(ctx context.Context) ([]BuddyRequest, error) {
	var reqs []BuddyRequest
	if err := c.get(ctx, "/received-buddy-requests/", nil, &reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

// AcceptBuddyRequest accepts a pending request.
func (c *Client) AcceptBuddyRequest(ctx context.Context, id string) error {
	return c.patch(ctx, "/buddy-request/"+url.PathEscape(id)+"/accept/", nil, nil)
}

// DeclineBuddyRequest declines a pending request.
func (c *Client) DeclineBuddyRequest(ctx context.Context, id string) error {
	return c.delete(ctx, "/buddy-request/"+url.PathEscape(id)+"/decline/")
}

// BlockBuddyRequest declines a pending request and blocks the sender.
func (c *Client) BlockBuddyRequest(ctx context.Context, id string) error {
	return c.patch(ctx, "/buddy-request/"+url.PathEscape(id)+"/block/", nil, nil)
}
