// Package session wraps the identity provider behind a single process-wide
// subscription. The provider fires auth-state changes at-least-once and may
// repeat them; everything downstream of this package sees each distinct
// identity exactly once.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Identity describes the signed-in user.
type Identity struct {
	UID       string
	Email     string
	Verified  bool
	Anonymous bool
}

// Authenticator is the identity-provider port implemented by the shell.
type Authenticator interface {
	SignInAnonymously(ctx context.Context) error
	SignIn(ctx context.Context, email, password string) error
	SendEmailVerification(ctx context.Context) error
	SignOut(ctx context.Context) error

	// Token returns a bearer credential, refreshing it when forceRefresh
	// is set.
	Token(ctx context.Context, forceRefresh bool) (string, error)

	// OnStateChange registers fn to run on every credential change with
	// the new identity, or nil when signed out. It may fire redundantly.
	// The returned func cancels the registration.
	OnStateChange(fn func(*Identity)) (cancel func())
}

// Provider owns the auth-state subscription, established once at
// construction, and fans identity changes out to subscribers. A signed-out
// state triggers an automatic anonymous sign-in so the app always has a
// credential to work with.
type Provider struct {
	auth   Authenticator
	logger *slog.Logger

	mu      sync.Mutex
	current *Identity
	subs    map[int]chan Identity
	nextSub int
	cancel  func()
}

// NewProvider creates the provider and attaches the process-wide
// auth-state subscription.
func NewProvider(auth Authenticator, logger *slog.Logger) *Provider {
	p := &Provider{
		auth:   auth,
		logger: logger,
		subs:   make(map[int]chan Identity),
	}
	p.cancel = auth.OnStateChange(p.handleState)
	return p
}

// Close detaches the auth-state subscription and closes all subscriber
// channels.
func (p *Provider) Close() {
	p.cancel()
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, ch := range p.subs {
		close(ch)
		delete(p.subs, id)
	}
}

// Current returns the last observed identity, or nil before the first
// state change arrives.
func (p *Provider) Current() *Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	id := *p.current
	return &id
}

// Subscribe returns a channel of identity changes and a cancel func. The
// current identity, if any, is delivered first.
func (p *Provider) Subscribe() (<-chan Identity, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan Identity, 8)
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	if p.current != nil {
		ch <- *p.current
	}

	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if sub, ok := p.subs[id]; ok {
			close(sub)
			delete(p.subs, id)
		}
	}
}

// Token returns a freshly refreshed bearer credential. It implements
// domain.TokenSource; every outgoing request calls this immediately before
// use.
func (p *Provider) Token(ctx context.Context) (string, error) {
	token, err := p.auth.Token(ctx, true)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	return token, nil
}

// SignIn upgrades the session with an email/password credential.
func (p *Provider) SignIn(ctx context.Context, email, password string) error {
	return p.auth.SignIn(ctx, email, password)
}

// SendEmailVerification re-sends the verification email for the current
// unverified user.
func (p *Provider) SendEmailVerification(ctx context.Context) error {
	return p.auth.SendEmailVerification(ctx)
}

// SignOut ends the current session. The subsequent signed-out state change
// triggers the anonymous fallback.
func (p *Provider) SignOut(ctx context.Context) error {
	return p.auth.SignOut(ctx)
}

func (p *Provider) handleState(id *Identity) {
	if id == nil {
		p.logger.Info("signed out, falling back to anonymous session")
		if err := p.auth.SignInAnonymously(context.Background()); err != nil {
			p.logger.Error("anonymous sign-in failed", "error", err)
		}
		return
	}

	p.mu.Lock()
	if p.current != nil && *p.current == *id {
		// redundant change event
		p.mu.Unlock()
		return
	}
	p.current = id
	subs := make([]chan Identity, 0, len(p.subs))
	for _, ch := range p.subs {
		subs = append(subs, ch)
	}
	p.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- *id:
		default:
			p.logger.Warn("dropping identity update for slow subscriber", "uid", id.UID)
		}
	}
}
