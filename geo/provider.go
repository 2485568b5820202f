// Package geo wraps the device location service: permission flow, one-shot
// position queries and reverse-geocode candidates.
package geo

import (
	"context"
	"log/slog"

	"github.com/placereel/placereel/domain"
)

// Provider supplies coordinates to the feed query and to upload metadata.
type Provider struct {
	locator  domain.Locator
	geocoder domain.ReverseGeocoder
	settings domain.SystemSettings
	logger   *slog.Logger
}

// NewProvider creates a Provider. geocoder and settings may be nil when
// the shell does not support them.
func NewProvider(locator domain.Locator, geocoder domain.ReverseGeocoder, settings domain.SystemSettings, logger *slog.Logger) *Provider {
	return &Provider{locator: locator, geocoder: geocoder, settings: settings, logger: logger}
}

// Current resolves the device position. It asks for permission while the
// system prompt is still available, returns a PermissionError once the
// permission is permanently denied, and ErrLocationUnavailable when a
// granted query produces no fix.
func (p *Provider) Current(ctx context.Context) (domain.GeoPoint, error) {
	state := p.locator.Permission()
	if state == domain.PermissionAskable {
		requested, err := p.locator.RequestPermission(ctx)
		if err != nil {
			p.logger.Warn("location permission prompt failed", "error", err)
			return domain.GeoPoint{}, domain.ErrLocationUnavailable
		}
		state = requested
	}
	if state != domain.PermissionGranted {
		return domain.GeoPoint{}, &domain.PermissionError{Resource: "location"}
	}

	pt, err := p.locator.Position(ctx)
	if err != nil {
		p.logger.Warn("position query failed", "error", err)
		return domain.GeoPoint{}, domain.ErrLocationUnavailable
	}
	if pt.IsZero() {
		return domain.GeoPoint{}, domain.ErrLocationUnavailable
	}
	return pt, nil
}

// Addresses returns reverse-geocode candidates for the point, or nil when
// no geocoder is available.
func (p *Provider) Addresses(ctx context.Context, pt domain.GeoPoint) ([]string, error) {
	if p.geocoder == nil {
		return nil, nil
	}
	return p.geocoder.Lookup(ctx, pt)
}

// OpenSettings redirects the user to the system settings app.
func (p *Provider) OpenSettings() {
	if p.settings != nil {
		p.settings.Open()
	}
}
