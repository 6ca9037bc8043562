// Package session owns process-wide session state: it wires the identity
// provider, the live profile mirror, the entitlement resolver, the presence
// heartbeat and the bookmark synchronizer together and exposes the stable
// contract the rest of the application consumes.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"streamhaven-session-go/internal/bookmarks"
	"streamhaven-session-go/internal/db"
	"streamhaven-session-go/internal/entitlement"
	"streamhaven-session-go/internal/identity"
	"streamhaven-session-go/internal/models"
	"streamhaven-session-go/internal/presence"
	"streamhaven-session-go/pkg/cache"
)

// ErrNotAuthenticated is returned by operations that require an active
// session.
var ErrNotAuthenticated = errors.New("no authenticated session")

// Hint-store keys for device-local preferences. Hints only; the first
// successful profile read supersedes them.
const (
	themeHintKey    = "prefs:theme"
	languageHintKey = "prefs:language"
)

// Snapshot is a synchronous copy of the session state.
type Snapshot struct {
	IsAuthenticated bool                    `json:"isAuthenticated"`
	Loading         bool                    `json:"loading"`
	Identity        *identity.Identity      `json:"identity,omitempty"`
	Profile         *models.UserProfile     `json:"profile,omitempty"`
	IsPremium       bool                    `json:"isPremium"`
	Subscription    entitlement.Entitlement `json:"subscriptionDetails"`
	BookmarkedIDs   []string                `json:"bookmarkedIds"`
	Theme           string                  `json:"theme"`
	Language        string                  `json:"language"`
}

// Controller is the single source of truth for the session. All state
// mutation funnels through its transition handlers; reads are synchronous
// snapshots. A generation counter marks each session so callbacks belonging
// to a superseded session are ignored.
type Controller struct {
	logger       *zap.Logger
	idp          identity.Provider
	profiles     db.ProfileRepository
	entitlements *entitlement.Service
	bookmarks    *bookmarks.Synchronizer
	heartbeat    *presence.Heartbeat
	hints        cache.Cache

	baseCtx context.Context
	unsub   func()

	mu                sync.Mutex
	generation        uint64
	identity          *identity.Identity
	profile           *models.UserProfile
	loading           bool
	entitlement       entitlement.Entitlement
	theme             string
	language          string
	persistedTheme    string
	persistedLanguage string
	stopWatch         func()
}

// NewController creates a Controller. Theme and language are seeded from the
// hint store so a cold start renders the last-known preferences before any
// network round trip.
func NewController(
	logger *zap.Logger,
	idp identity.Provider,
	profiles db.ProfileRepository,
	entitlements *entitlement.Service,
	bookmarkSync *bookmarks.Synchronizer,
	heartbeat *presence.Heartbeat,
	hints cache.Cache,
) *Controller {
	c := &Controller{
		logger:       logger,
		idp:          idp,
		profiles:     profiles,
		entitlements: entitlements,
		bookmarks:    bookmarkSync,
		heartbeat:    heartbeat,
		hints:        hints,
		entitlement:  entitlement.Free(),
		theme:        models.DefaultTheme,
		language:     models.DefaultLanguage,
	}
	if v, err := hints.Get(themeHintKey); err == nil && v != "" {
		c.theme = v
	}
	if v, err := hints.Get(languageHintKey); err == nil && v != "" {
		c.language = v
	}
	return c
}

// Start checks synchronously for an already-established identity, seeds
// state from it so consumers never see a flash of "logged out", and then
// subscribes to identity transitions. ctx bounds all background work the
// controller spawns.
func (c *Controller) Start(ctx context.Context) {
	c.baseCtx = ctx

	current := c.idp.Current()
	if current != nil {
		c.mu.Lock()
		c.identity = current
		c.loading = true
		c.mu.Unlock()
	}

	c.unsub = c.idp.OnChange(func(ident *identity.Identity) {
		c.handleIdentityChange(ident)
	})

	if current != nil {
		c.beginSession(current)
	}
}

// Close unsubscribes from identity transitions and tears down any active
// session.
func (c *Controller) Close() {
	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
	c.endSession()
}

// handleIdentityChange is the single transition handler: an identity
// appearing starts a session, an identity disappearing ends one.
func (c *Controller) handleIdentityChange(ident *identity.Identity) {
	if ident == nil {
		c.endSession()
		return
	}
	c.beginSession(ident)
}

// beginSession runs the identity-appeared transition: report presence,
// load or create the profile and its companion free subscription, resolve
// entitlement, load merged bookmarks, and attach the live profile mirror.
// The generation captured at the start guards every deferred effect against
// a session switch that happened mid-load.
func (c *Controller) beginSession(ident *identity.Identity) {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	prevUID := ""
	if c.identity != nil {
		prevUID = c.identity.UID
	}
	if c.stopWatch != nil {
		c.stopWatch()
		c.stopWatch = nil
	}
	c.identity = ident
	c.profile = nil
	c.loading = true
	c.entitlement = entitlement.Free()
	c.mu.Unlock()

	ctx := c.baseCtx
	if prevUID != "" {
		// Direct identity switch with no intervening sign-out: the previous
		// session's liveness reporting and bookmarks must be fully detached
		// before the new session attaches, or its writes would land on the
		// superseded user's profile.
		c.bookmarks.Reset()
		c.heartbeat.Stop()
		if prevUID != ident.UID {
			go c.heartbeat.MarkOffline(ctx, prevUID)
		}
	}
	c.heartbeat.Start(ctx, ident.UID)

	profile, err := c.loadOrCreateProfile(ctx, ident)
	if err != nil {
		// Losing profile data is never equivalent to losing identity: the
		// session stays authenticated with a partial profile.
		c.logger.Error("Profile load failed; continuing with partial session",
			zap.String("uid", ident.UID), zap.Error(err))
	}

	if err := c.entitlements.EnsureFree(ctx, ident.UID); err != nil {
		c.logger.Warn("Failed to ensure subscription record",
			zap.String("uid", ident.UID), zap.Error(err))
	}
	ent := c.entitlements.Load(ctx, ident.UID)

	if err := c.bookmarks.Load(ctx, ident.UID, ident.Email); err != nil {
		c.logger.Warn("Bookmark load failed", zap.String("uid", ident.UID), zap.Error(err))
	}

	// Live mirror: admin-flag or theme changes made elsewhere propagate
	// without a manual refresh.
	stop, watchErr := c.profiles.Watch(ctx, ident.UID, func(p *models.UserProfile) {
		c.applyProfileSnapshot(gen, p)
	})
	if watchErr != nil {
		c.logger.Warn("Profile watch failed", zap.String("uid", ident.UID), zap.Error(watchErr))
		stop = nil
	}

	c.mu.Lock()
	if gen != c.generation {
		// A logout or re-login superseded this load while it was in flight.
		c.mu.Unlock()
		if stop != nil {
			stop()
		}
		return
	}
	c.profile = profile
	c.entitlement = ent
	c.loading = false
	c.stopWatch = stop
	if profile != nil {
		c.theme = profile.Theme
		c.language = profile.Language
		c.persistedTheme = profile.Theme
		c.persistedLanguage = profile.Language
	}
	c.mu.Unlock()

	c.storePrefHints()
}

// endSession runs the identity-disappeared transition. Profile, bookmarks
// and entitlement are cleared synchronously so stale data is never shown to
// a new session; the offline presence write is fire-and-forget and never
// blocks teardown.
func (c *Controller) endSession() {
	c.mu.Lock()
	c.generation++
	uid := ""
	if c.identity != nil {
		uid = c.identity.UID
	}
	if c.stopWatch != nil {
		c.stopWatch()
		c.stopWatch = nil
	}
	c.identity = nil
	c.profile = nil
	c.loading = false
	c.entitlement = entitlement.Free()
	c.persistedTheme = ""
	c.persistedLanguage = ""
	c.mu.Unlock()

	c.bookmarks.Reset()

	if uid != "" {
		c.heartbeat.Stop()
		go c.heartbeat.MarkOffline(c.baseCtx, uid)
	}
}

// loadOrCreateProfile reads the profile, creating it with identity-derived
// defaults on first login.
func (c *Controller) loadOrCreateProfile(ctx context.Context, ident *identity.Identity) (*models.UserProfile, error) {
	profile, err := c.profiles.GetByUID(ctx, ident.UID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	profile = &models.UserProfile{
		UID:           ident.UID,
		DisplayName:   ident.DisplayName,
		Email:         ident.Email,
		PhotoURL:      ident.PhotoURL,
		Theme:         models.DefaultTheme,
		Language:      models.DefaultLanguage,
		Presence:      models.PresenceOnline,
		LastSeen:      time.Now().UTC(),
		BookmarkedIDs: []string{},
	}
	if err := c.profiles.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create profile for uid '%s': %w", ident.UID, err)
	}
	c.logger.Info("Created profile with defaults on first login", zap.String("uid", ident.UID))
	return profile, nil
}

// applyProfileSnapshot mirrors a live snapshot into local state. Snapshots
// from a superseded session generation are no-ops; a nil snapshot (document
// missing) keeps the last known profile rather than demoting the session.
func (c *Controller) applyProfileSnapshot(gen uint64, p *models.UserProfile) {
	if p == nil {
		return
	}
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.profile = p
	c.theme = p.Theme
	c.language = p.Language
	c.persistedTheme = p.Theme
	c.persistedLanguage = p.Language
	c.mu.Unlock()

	c.storePrefHints()
}

// Snapshot returns a synchronous copy of the session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	snap := Snapshot{
		IsAuthenticated: c.identity != nil,
		Loading:         c.loading,
		Identity:        c.identity,
		Profile:         c.profile,
		IsPremium:       c.entitlement.IsPremium,
		Subscription:    c.entitlement,
		Theme:           c.theme,
		Language:        c.language,
	}
	c.mu.Unlock()
	snap.BookmarkedIDs = c.bookmarks.IDs()
	return snap
}

// SignIn establishes an identity from an ID token; the resulting transition
// drives beginSession via the provider subscription.
func (c *Controller) SignIn(ctx context.Context, idToken string) (*identity.Identity, error) {
	return c.idp.SignIn(ctx, idToken)
}

// SignOut clears the identity; the resulting transition drives endSession.
func (c *Controller) SignOut(ctx context.Context) error {
	return c.idp.SignOut(ctx)
}

// SetTheme applies a theme change to local state immediately and persists it
// asynchronously, but only when it differs from the last-known persisted
// value. Comparing against the persisted value, not the applied one, is what
// breaks echo loops against the live profile subscription.
func (c *Controller) SetTheme(theme string) {
	c.mu.Lock()
	c.theme = theme
	uid := ""
	if c.identity != nil {
		uid = c.identity.UID
	}
	needsWrite := uid != "" && theme != c.persistedTheme
	c.mu.Unlock()

	if err := c.hints.Set(themeHintKey, theme, 0); err != nil {
		c.logger.Debug("Failed to store theme hint", zap.Error(err))
	}
	if !needsWrite {
		return
	}
	go c.persistPref(uid, "theme", theme)
}

// SetLanguage mirrors SetTheme for the language preference.
func (c *Controller) SetLanguage(language string) {
	c.mu.Lock()
	c.language = language
	uid := ""
	if c.identity != nil {
		uid = c.identity.UID
	}
	needsWrite := uid != "" && language != c.persistedLanguage
	c.mu.Unlock()

	if err := c.hints.Set(languageHintKey, language, 0); err != nil {
		c.logger.Debug("Failed to store language hint", zap.Error(err))
	}
	if !needsWrite {
		return
	}
	go c.persistPref(uid, "language", language)
}

// persistPref writes a single preference field to the profile store and
// records it as the last persisted value on success.
func (c *Controller) persistPref(uid, field, value string) {
	if err := c.profiles.SetFields(c.baseCtx, uid, map[string]interface{}{field: value}); err != nil {
		c.logger.Warn("Failed to persist preference",
			zap.String("uid", uid), zap.String("field", field), zap.Error(err))
		return
	}
	c.mu.Lock()
	switch field {
	case "theme":
		c.persistedTheme = value
	case "language":
		c.persistedLanguage = value
	}
	c.mu.Unlock()
}

// ToggleBookmark toggles a bookmark for the active session. Errors surface
// to the caller; local bookmark state is only mutated after confirmed
// success.
func (c *Controller) ToggleBookmark(ctx context.Context, contentID string, meta models.BookmarkMeta, isSeries bool) (bool, error) {
	c.mu.Lock()
	authenticated := c.identity != nil
	c.mu.Unlock()
	if !authenticated {
		return false, ErrNotAuthenticated
	}
	return c.bookmarks.Toggle(ctx, contentID, meta, isSeries)
}

// RefreshSubscription re-resolves entitlement from the remote record, e.g.
// after a payment confirmation callback.
func (c *Controller) RefreshSubscription(ctx context.Context) (entitlement.Entitlement, error) {
	c.mu.Lock()
	gen := c.generation
	ident := c.identity
	c.mu.Unlock()
	if ident == nil {
		return entitlement.Free(), ErrNotAuthenticated
	}

	e := c.entitlements.Load(ctx, ident.UID)

	c.mu.Lock()
	if gen == c.generation {
		c.entitlement = e
	}
	c.mu.Unlock()
	return e, nil
}

// RedeemCoupon redeems a coupon for the active session and refreshes
// entitlement on success.
func (c *Controller) RedeemCoupon(ctx context.Context, code string) (*models.Coupon, error) {
	c.mu.Lock()
	ident := c.identity
	c.mu.Unlock()
	if ident == nil {
		return nil, ErrNotAuthenticated
	}

	coupon, err := c.entitlements.RedeemCoupon(ctx, ident.UID, code)
	if err != nil {
		return nil, err
	}
	if _, err := c.RefreshSubscription(ctx); err != nil {
		c.logger.Warn("Entitlement refresh after redemption failed", zap.Error(err))
	}
	return coupon, nil
}

// SetVisibility forwards a tab visibility transition to the heartbeat.
func (c *Controller) SetVisibility(ctx context.Context, visible bool) {
	c.heartbeat.SetVisibility(ctx, visible)
}

// SignalTeardown forwards a best-effort "page unloading" liveness signal.
// Multiple hooks may fire in any order or concurrently; the underlying
// writes are idempotent.
func (c *Controller) SignalTeardown(ctx context.Context) {
	c.heartbeat.SignalTeardown(ctx)
}

// storePrefHints persists the current theme/language as cold-start hints.
func (c *Controller) storePrefHints() {
	c.mu.Lock()
	theme, language := c.theme, c.language
	c.mu.Unlock()
	if err := c.hints.Set(themeHintKey, theme, 0); err != nil {
		c.logger.Debug("Failed to store theme hint", zap.Error(err))
	}
	if err := c.hints.Set(languageHintKey, language, 0); err != nil {
		c.logger.Debug("Failed to store language hint", zap.Error(err))
	}
}
