package backend

import (
	"context"

	"github.com/placereel/placereel/domain"
)

const maxDisplayNameLen = 28

type eulaBody struct {
	AgreedToEula bool `json:"agreed_to_eula"`
}

type displayNameBody struct {
	DisplayName string `json:"display_name"`
}

type rankResponse struct {
	Rank   int `json:"rank"`
	Points int `json:"points"`
}

// EulaAgreed reports whether the user has accepted the terms.
func (c *Client) EulaAgreed(ctx context.Context) (bool, error) {
	var resp eulaBody
	if err := c.get(ctx, "/eula-agreed/", nil, &resp); err != nil {
		return false, err
	}
	return resp.AgreedToEula, nil
}

// AgreeEula records acceptance of the terms and returns the new state.
func (c *Client) AgreeEula(ctx context.Context) (bool, error) {
	var resp eulaBody
	if err := c.patch(ctx, "/eula-agreed/", eulaBody{AgreedToEula: true}, &resp); err != nil {
		return false, err
	}
	return resp.AgreedToEula, nil
}

// DisplayName returns the user's current display name.
func (c *Client) DisplayName(ctx context.Context) (string, error) {
	var resp displayNameBody
	if err := c.get(ctx, "/display-name/", nil, &resp); err != nil {
		return "", err
	}
	return resp.DisplayName, nil
}

// SetDisplayName changes the user's display name. The name is validated
// locally before any request is sent.
func (c *Client) SetDisplayName(ctx context.Context, name string) error {
	if name == "" {
		return &domain.ValidationError{Field: "display_name", Reason: "required"}
	}
	if len(name) > maxDisplayNameLen {
		return &domain.ValidationError{Field: "display_name", Reason: "must be at most 28 characters"}
	}
	return c.patch(ctx, "/display-name/", displayNameBody{DisplayName: name}, nil)
}

// Rank returns the user's rank and accumulated points. The ranking
// algorithm itself is opaque to the client.
func (c *Client) Rank(ctx context.Context) (rank, points int, err error) {
	var resp rankResponse
	if err := c.get(ctx, "/rank/", nil, &resp); err != nil {
		return 0, 0, err
	}
	return resp.Rank, resp.Points, nil
}

// DeleteAccount permanently removes the user's account and content.
func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.delete(ctx, "/delete-account/")
}
