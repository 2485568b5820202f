// Package client wires the core together for the mobile shell: one App
// owns the session, the backend client, the uploader and the background
// notification subscriber, and hands out feed controllers per screen.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/placereel/placereel/backend"
	"github.com/placereel/placereel/config"
	"github.com/placereel/placereel/domain"
	"github.com/placereel/placereel/feed"
	"github.com/placereel/placereel/geo"
	"github.com/placereel/placereel/localstate"
	"github.com/placereel/placereel/notify"
	"github.com/placereel/placereel/record"
	"github.com/placereel/placereel/session"
	"github.com/placereel/placereel/upload"
)

// Deps are the device-side collaborators implemented by the shell.
type Deps struct {
	Authenticator session.Authenticator
	Locator       domain.Locator
	Geocoder      domain.ReverseGeocoder
	Settings      domain.SystemSettings
	Camera        domain.Camera
	Connectivity  domain.Connectivity
	Resolver      domain.MediaResolver

	// Notify receives push events; nil disables the subscriber.
	Notify notify.Handler

	// Logger defaults to a JSON logger on stdout when nil.
	Logger *slog.Logger
}

// App is the assembled client core.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	Session  *session.Provider
	Location *geo.Provider
	Backend  *backend.Client
	Fetcher  *backend.Fetcher
	Recorder *record.Recorder
	Uploader *upload.Uploader
	State    *localstate.Store

	subscriber *notify.Subscriber
	cancel     context.CancelFunc
}

// New assembles the core from configuration and shell-provided deps.
func New(cfg *config.Config, deps Deps) (*App, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	state, err := localstate.Open(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open local state: %w", err)
	}

	sess := session.NewProvider(deps.Authenticator, logger)
	location := geo.NewProvider(deps.Locator, deps.Geocoder, deps.Settings, logger)
	api := backend.NewClient(cfg.BackendURL, sess, cfg.HTTPTimeout, logger)
	fetcher := backend.NewFetcher(api, deps.Resolver, logger)
	recorder := record.NewRecorder(deps.Camera, deps.Settings, cfg.MaxRecordDuration, logger)
	uploader := upload.NewUploader(upload.Options{
		Endpoint:    cfg.BackendURL + "/video-upload/",
		ChunkSize:   cfg.UploadChunkSize,
		RetryDelays: cfg.UploadRetryDelays,
	}, sess, deps.Connectivity, state, api, logger)

	app := &App{
		cfg:      cfg,
		logger:   logger,
		Session:  sess,
		Location: location,
		Backend:  api,
		Fetcher:  fetcher,
		Recorder: recorder,
		Uploader: uploader,
		State:    state,
	}

	if cfg.NotifyURL != "" && deps.Notify != nil {
		app.subscriber = notify.NewSubscriber(cfg.NotifyURL, deps.Notify, state, logger)
	}

	return app, nil
}

// CanRecord checks the capture preconditions: a verified account and at
// least one buddy to star on the post. The shell calls this before
// offering the capture screen and routes the returned error to the
// matching sign-in or buddies view.
func (a *App) CanRecord(ctx context.Context) error {
	id := a.Session.Current()
	if id == nil || id.Anonymous || !id.Verified {
		return domain.ErrVerificationRequired
	}
	if a.cfg.MetadataVariant != domain.VariantBuddySpend {
		return nil
	}
	buddies, err := a.Backend.Buddies(ctx)
	if err != nil {
		return fmt.Errorf("list buddies: %w", err)
	}
	if len(buddies) == 0 {
		return domain.ErrBuddyRequired
	}
	return nil
}

// NewFeed creates a controller for one feed screen. onFirstPage, when not
// nil, runs after each successful first-page load so the shell can reset
// the scroll position.
func (a *App) NewFeed(onFirstPage func()) *feed.Controller {
	return feed.NewController(a.Fetcher, a.Location, a.Backend, a.cfg.ViewabilityThreshold, onFirstPage, a.logger)
}

// Start launches the background notification subscriber, if configured.
func (a *App) Start(ctx context.Context) {
	if a.subscriber == nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	go func() {
		if err := a.subscriber.Start(runCtx); err != nil && runCtx.Err() == nil {
			a.logger.Error("push subscriber exited with error", "error", err)
		}
	}()
}

// Close stops background work and releases the local state store and the
// auth-state subscription.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	a.Session.Close()
	return a.State.Close()
}
