package auth

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"
	"github.com/rs/zerolog"

	apperrors "github.com/oglimmer/mdalert/errors"
	"github.com/oglimmer/mdalert/internal/keychain"
	"github.com/oglimmer/mdalert/internal/oidc"
)

// CredentialStore is the slice of the keychain store the orchestrator needs.
type CredentialStore interface {
	Save(*keychain.Credential) bool
	Load() *keychain.Credential
	Clear() bool
}

// pendingRequest is the single in-flight authorization request. The verifier
// is consumed exactly once by a matching callback; a newer login replaces the
// whole request, permanently invalidating the old verifier.
type pendingRequest struct {
	state    string
	verifier string
	issuedAt time.Time
}

// Options configures an Orchestrator.
type Options struct {
	ClientID    string
	RedirectURI string
	Scope       string

	Discovery *oidc.DiscoveryResolver
	Provider  *oidc.ProviderClient
	Store     CredentialStore

	// OpenBrowser hands the authorization URL to the system browser.
	// Defaults to pkg/browser.
	OpenBrowser func(url string) error
	// Now is the clock used for expiry computation. Defaults to time.Now.
	Now func() time.Time

	Logger zerolog.Logger
}

// Orchestrator drives the authorization-code + refresh state machine and owns
// the single authenticated session. State is published through a StateCell;
// all mutation happens under one mutex, with network calls outside it and a
// generation check on re-entry so late results against a changed session are
// discarded.
type Orchestrator struct {
	clientID    string
	redirectURI string
	scope       string
	discovery   *oidc.DiscoveryResolver
	provider    *oidc.ProviderClient
	store       CredentialStore
	openBrowser func(string) error
	now         func() time.Time
	logger      zerolog.Logger
	cell        *StateCell

	mu       sync.Mutex
	state    State
	pending  *pendingRequest
	cred     *keychain.Credential
	identity *oidc.UserInfo
	lastErr  error
	gen      uint64
}

// NewOrchestrator creates the orchestrator in StateUnauthenticated.
func NewOrchestrator(opts Options) *Orchestrator {
	if opts.OpenBrowser == nil {
		opts.OpenBrowser = browser.OpenURL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		clientID:    opts.ClientID,
		redirectURI: opts.RedirectURI,
		scope:       opts.Scope,
		discovery:   opts.Discovery,
		provider:    opts.Provider,
		store:       opts.Store,
		openBrowser: opts.OpenBrowser,
		now:         opts.Now,
		logger:      opts.Logger.With().Str("component", "auth").Logger(),
		cell:        NewStateCell(),
	}
}

// Cell returns the subscribable authentication state.
func (o *Orchestrator) Cell() *StateCell { return o.cell }

// Snapshot returns the current authentication state.
func (o *Orchestrator) Snapshot() Snapshot { return o.cell.Snapshot() }

// Login starts the authorization-code flow: it requires the discovery
// document, generates a fresh PKCE pair and state nonce, replaces any pending
// request, and opens the browser at the authorization URL.
func (o *Orchestrator) Login(ctx context.Context) error {
	doc, err := o.discovery.Resolve(ctx)
	if err != nil {
		o.toError(fmt.Errorf("provider configuration not available: %w", err))
		return err
	}

	verifier, err := oidc.NewVerifier()
	if err != nil {
		o.toError(err)
		return err
	}
	challenge := oidc.ChallengeS256(verifier)
	nonce := uuid.NewString()

	o.mu.Lock()
	o.gen++
	o.pending = &pendingRequest{state: nonce, verifier: verifier, issuedAt: o.now()}
	o.state = StateAwaitingCallback
	o.lastErr = nil
	o.publishLocked()
	o.mu.Unlock()

	authURL, err := oidc.AuthorizationURL(doc.AuthorizationEndpoint, oidc.AuthorizationParams{
		ClientID:    o.clientID,
		RedirectURI: o.redirectURI,
		Scope:       o.scope,
		State:       nonce,
		Challenge:   challenge,
	})
	if err != nil {
		o.toError(err)
		return err
	}

	o.logger.Info().Msg("opening browser for authorization")
	if err := o.openBrowser(authURL); err != nil {
		err = fmt.Errorf("opening browser: %w", err)
		o.toError(err)
		return err
	}

	return nil
}

// HandleCallback consumes the OAuth redirect. The pending request is cleared
// unconditionally before its verifier is used, so a duplicate or stale
// callback can never replay the exchange.
func (o *Orchestrator) HandleCallback(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		err = apperrors.NewState("auth.callback", "invalid callback URL")
		o.toError(err)
		return err
	}
	q := u.Query()

	if e := q.Get("error"); e != "" {
		msg := e
		if desc := q.Get("error_description"); desc != "" {
			msg = e + ": " + desc
		}
		err := apperrors.NewProtocol("auth.callback", "authorization failed: "+msg)
		o.toError(err)
		return err
	}

	code := q.Get("code")
	if code == "" {
		err := apperrors.NewProtocol("auth.callback", "no authorization code received")
		o.toError(err)
		return err
	}

	o.mu.Lock()
	p := o.pending
	o.pending = nil
	if p == nil {
		err := apperrors.NewState("auth.callback", "no pending authorization request")
		o.failLocked(err)
		o.mu.Unlock()
		return err
	}
	if s := q.Get("state"); s != p.state {
		err := apperrors.NewState("auth.callback", "state mismatch, stale callback rejected")
		o.failLocked(err)
		o.mu.Unlock()
		return err
	}
	o.state = StateExchangingCode
	o.lastErr = nil
	o.publishLocked()
	gen := o.gen
	o.mu.Unlock()

	doc, err := o.discovery.Resolve(ctx)
	if err != nil {
		o.toError(err)
		return err
	}

	o.logger.Info().Str("code", keychain.TokenPrefix(code)).Msg("exchanging authorization code")
	tok, err := o.provider.Exchange(ctx, doc.TokenEndpoint, code, p.verifier)
	if err != nil {
		// A failed exchange leaves any previously stored credential untouched.
		o.toError(err)
		return err
	}

	o.completeTokenResponse(ctx, doc, tok, gen)
	return nil
}

// RestoreSession inspects the stored credential at process start: a valid one
// restores the authenticated session without a browser round trip, an expired
// one with a refresh token triggers a refresh, and anything else fails closed.
func (o *Orchestrator) RestoreSession(ctx context.Context) error {
	cred := o.store.Load()
	if cred == nil {
		o.logger.Debug().Msg("no stored credential")
		return nil
	}

	if !cred.Expired(o.now()) {
		o.logger.Info().
			Str("access_token", keychain.TokenPrefix(cred.AccessToken)).
			Msg("restoring session from stored credential")

		o.mu.Lock()
		o.cred = cred
		o.state = StateAuthenticated
		o.lastErr = nil
		o.publishLocked()
		gen := o.gen
		o.mu.Unlock()

		if doc, err := o.discovery.Resolve(ctx); err == nil {
			o.fetchIdentity(ctx, doc, cred.AccessToken, gen)
		} else {
			o.logger.Warn().Err(err).Msg("discovery unavailable, skipping userinfo fetch")
		}
		return nil
	}

	if !cred.HasRefreshToken() {
		o.logger.Info().Msg("stored credential expired without refresh token, clearing")
		o.store.Clear()
		return nil
	}

	o.logger.Info().Msg("stored credential expired, attempting refresh")
	return o.refresh(ctx, cred.RefreshToken)
}

// Refresh renews the current session with its refresh token. It is driven by
// the expiry watcher; callers without an authenticated session get a state
// error.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	o.mu.Lock()
	cred := o.cred
	o.mu.Unlock()

	if cred == nil || !cred.HasRefreshToken() {
		err := apperrors.NewState("auth.refresh", "no refresh token held")
		o.toError(err)
		return err
	}
	return o.refresh(ctx, cred.RefreshToken)
}

// refreshLeeway is how long before expiry the watcher renews the session.
const refreshLeeway = 30 * time.Second

// WatchExpiry renews the session shortly before the credential expires, for
// as long as ctx lives. Expiry detection at process start stays in
// RestoreSession; this covers sessions that outlive their first access token.
func (o *Orchestrator) WatchExpiry(ctx context.Context) {
	updates := o.cell.Subscribe()
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	arm := func(snap Snapshot) {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		if !snap.Authenticated() {
			return
		}
		o.mu.Lock()
		cred := o.cred
		o.mu.Unlock()
		if cred == nil || !cred.HasRefreshToken() || cred.ExpiresAt.IsZero() {
			return
		}
		wait := cred.ExpiresAt.Sub(o.now()) - refreshLeeway
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
	}

	arm(o.Snapshot())
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-updates:
			arm(snap)
		case <-timer.C:
			if err := o.Refresh(ctx); err != nil {
				o.logger.Warn().Err(err).Msg("scheduled refresh failed")
			}
		}
	}
}

// refresh runs the refresh_token grant. Failure is fatal to the session: the
// stored credential is cleared so a revoked refresh token is never retried.
func (o *Orchestrator) refresh(ctx context.Context, refreshToken string) error {
	o.mu.Lock()
	o.state = StateRefreshing
	o.lastErr = nil
	o.publishLocked()
	gen := o.gen
	o.mu.Unlock()

	doc, err := o.discovery.Resolve(ctx)
	if err != nil {
		return o.refreshFailed(err, gen)
	}

	tok, err := o.provider.Refresh(ctx, doc.TokenEndpoint, refreshToken)
	if err != nil {
		return o.refreshFailed(err, gen)
	}

	o.completeTokenResponse(ctx, doc, tok, gen)
	return nil
}

func (o *Orchestrator) refreshFailed(cause error, gen uint64) error {
	err := fmt.Errorf("authentication expired, please sign in again: %w", cause)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		// Logout or a new login already moved the session on; the stored
		// credential belongs to that newer session and stays untouched.
		o.logger.Warn().Err(cause).Msg("discarding refresh failure for a superseded session")
		return err
	}
	o.logger.Warn().Err(cause).Msg("token refresh failed, clearing stored credential")
	o.store.Clear()
	o.cred = nil
	o.identity = nil
	o.state = StateUnauthenticated
	o.lastErr = err
	o.publishLocked()
	return err
}

// completeTokenResponse persists the token response and flips to
// Authenticated, then fetches the user identity as a display-only side
// effect. Results arriving after a logout or newer login are discarded.
func (o *Orchestrator) completeTokenResponse(ctx context.Context, doc *oidc.DiscoveryDocument, tok *oidc.TokenResponse, gen uint64) {
	cred := &keychain.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		IDToken:      tok.IDToken,
		// Expiry is computed at the moment the response is received, not
		// echoed from the server.
		ExpiresAt: o.now().Add(time.Duration(tok.ExpiresIn) * time.Second),
	}

	o.mu.Lock()
	if o.gen != gen {
		o.mu.Unlock()
		o.logger.Info().Msg("discarding token response for a superseded session")
		return
	}
	if !o.store.Save(cred) {
		// The in-memory session stays usable; the stored copy is
		// prospectively untrustworthy and will fail closed on next start.
		o.logger.Error().Msg("persisting credential failed")
	}
	o.cred = cred
	o.identity = nil
	o.state = StateAuthenticated
	o.lastErr = nil
	o.publishLocked()
	o.mu.Unlock()

	o.logger.Info().
		Str("access_token", keychain.TokenPrefix(cred.AccessToken)).
		Time("expires_at", cred.ExpiresAt).
		Msg("authenticated")

	o.fetchIdentity(ctx, doc, cred.AccessToken, gen)
}

// fetchIdentity is a side effect of authentication, not a state transition:
// failure leaves the session authenticated but without a display identity.
func (o *Orchestrator) fetchIdentity(ctx context.Context, doc *oidc.DiscoveryDocument, accessToken string, gen uint64) {
	info, err := o.provider.FetchUserInfo(ctx, doc.UserinfoEndpoint, accessToken)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen || o.state != StateAuthenticated {
		return
	}
	if err != nil {
		o.logger.Warn().Err(err).Msg("userinfo fetch failed, session stays authenticated")
		o.lastErr = err
		o.publishLocked()
		return
	}
	o.identity = info
	o.publishLocked()
}

// Logout clears the stored credential unconditionally and returns to
// StateUnauthenticated. An in-flight refresh or exchange that completes later
// is discarded by the generation check.
func (o *Orchestrator) Logout() {
	o.mu.Lock()
	o.gen++
	o.pending = nil
	o.cred = nil
	o.identity = nil
	o.lastErr = nil
	o.state = StateUnauthenticated
	ok := o.store.Clear()
	o.publishLocked()
	o.mu.Unlock()

	if !ok {
		o.logger.Warn().Msg("clearing stored credential failed")
	}
	o.logger.Info().Msg("logged out")
}

// toError records a user-visible failure and returns to Unauthenticated. Any
// pending authorization request is discarded.
func (o *Orchestrator) toError(err error) {
	o.mu.Lock()
	o.failLocked(err)
	o.mu.Unlock()
}

func (o *Orchestrator) failLocked(err error) {
	o.pending = nil
	o.state = StateUnauthenticated
	o.lastErr = err
	o.publishLocked()
}

func (o *Orchestrator) publishLocked() {
	snap := Snapshot{State: o.state, Identity: o.identity, Err: o.lastErr}
	if o.state == StateAuthenticated && o.cred != nil {
		snap.AccessToken = o.cred.AccessToken
	}
	o.cell.set(snap)
}
