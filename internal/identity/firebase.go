package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
)

// tokenCacheTTL is how long a verified token is served from cache before
// being re-verified against Firebase.
const tokenCacheTTL = 5 * time.Minute

// ErrNoSession is returned by Token when no identity is established.
var ErrNoSession = errors.New("no active session")

// FirebaseProvider implements Provider on top of the Firebase Auth Admin SDK.
// Sign-in verifies a client-issued ID token and derives the identity from its
// claims (uid, email, name, picture).
type FirebaseProvider struct {
	authClient *auth.Client
	logger     *zap.Logger

	mu         sync.Mutex
	current    *Identity
	rawToken   string
	verifiedAt time.Time
	subs       map[int]func(*Identity)
	nextSubID  int
}

// NewFirebaseProvider creates a FirebaseProvider. The auth client is a
// critical setup dependency.
func NewFirebaseProvider(authClient *auth.Client, logger *zap.Logger) *FirebaseProvider {
	if authClient == nil {
		panic("Firebase Auth client is not initialized for FirebaseProvider")
	}
	return &FirebaseProvider{
		authClient: authClient,
		logger:     logger,
		subs:       make(map[int]func(*Identity)),
	}
}

// Current returns the established identity, or nil.
func (p *FirebaseProvider) Current() *Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// OnChange registers fn for identity transitions.
func (p *FirebaseProvider) OnChange(fn func(*Identity)) func() {
	p.mu.Lock()
	id := p.nextSubID
	p.nextSubID++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// SignIn verifies the ID token, establishes the identity and notifies
// subscribers.
func (p *FirebaseProvider) SignIn(ctx context.Context, idToken string) (*Identity, error) {
	token, err := p.authClient.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	ident := identityFromToken(token)

	p.mu.Lock()
	p.current = ident
	p.rawToken = idToken
	p.verifiedAt = time.Now()
	p.mu.Unlock()

	p.logger.Info("Identity established", zap.String("uid", ident.UID))
	p.notify(ident)
	return ident, nil
}

// SignOut clears the identity and notifies subscribers with nil.
func (p *FirebaseProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	had := p.current != nil
	uid := ""
	if p.current != nil {
		uid = p.current.UID
	}
	p.current = nil
	p.rawToken = ""
	p.verifiedAt = time.Time{}
	p.mu.Unlock()

	if !had {
		return nil
	}
	p.logger.Info("Identity cleared", zap.String("uid", uid))
	p.notify(nil)
	return nil
}

// Token returns the session's ID token. The verification result is cached for
// tokenCacheTTL; forceRefresh (or a stale cache) re-verifies the stored token,
// which fails once the underlying token has expired.
func (p *FirebaseProvider) Token(ctx context.Context, forceRefresh bool) (string, error) {
	p.mu.Lock()
	raw := p.rawToken
	fresh := time.Since(p.verifiedAt) < tokenCacheTTL
	p.mu.Unlock()

	if raw == "" {
		return "", ErrNoSession
	}
	if fresh && !forceRefresh {
		return raw, nil
	}

	if _, err := p.authClient.VerifyIDToken(ctx, raw); err != nil {
		return "", fmt.Errorf("cached token is no longer valid: %w", err)
	}
	p.mu.Lock()
	p.verifiedAt = time.Now()
	p.mu.Unlock()
	return raw, nil
}

// notify delivers a transition to subscribers in registration order. Callbacks
// run outside the lock so they may call back into the provider.
func (p *FirebaseProvider) notify(ident *Identity) {
	p.mu.Lock()
	fns := make([]func(*Identity), 0, len(p.subs))
	for i := 0; i < p.nextSubID; i++ {
		if fn, ok := p.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(ident)
	}
}

// identityFromToken maps the standard Firebase claims onto an Identity.
func identityFromToken(token *auth.Token) *Identity {
	ident := &Identity{UID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		ident.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		ident.DisplayName = name
	}
	if picture, ok := token.Claims["picture"].(string); ok {
		ident.PhotoURL = picture
	}
	return ident
}
