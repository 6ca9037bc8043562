package db

import (
	"context"

	"streamhaven-session-go/internal/models"
)

// ProfileRepository defines the storage operations for user profile documents,
// including the live-subscription primitive the session engine mirrors from.
type ProfileRepository interface {
	GetByUID(ctx context.Context, uid string) (*models.UserProfile, error)
	Create(ctx context.Context, profile *models.UserProfile) error
	// SetFields performs a field-level merge write on the profile document.
	SetFields(ctx context.Context, uid string, fields map[string]interface{}) error
	// Watch streams profile snapshots to fn until the returned stop function
	// is called or ctx is canceled. fn receives nil when the document does
	// not exist. Snapshots may arrive out of order relative to
	// locally-initiated writes.
	Watch(ctx context.Context, uid string, fn func(*models.UserProfile)) (stop func(), err error)
}

// SubscriptionRepository defines the storage operations for subscription
// documents. The user UID is the document ID, so there is at most one
// subscription per user.
type SubscriptionRepository interface {
	GetByUserID(ctx context.Context, uid string) (*models.Subscription, error)
	// Upsert overwrites the user's subscription, creating it if absent.
	Upsert(ctx context.Context, sub *models.Subscription) error
}

// CouponRepository defines the storage operations for coupon documents.
type CouponRepository interface {
	GetByCode(ctx context.Context, code string) (*models.Coupon, error)
	// Redeem atomically flips the coupon to inactive and writes the given
	// subscription in a single transaction. It fails with ErrCouponInactive
	// if the coupon was redeemed concurrently, closing the double-redemption
	// window a plain read-then-write would leave open.
	Redeem(ctx context.Context, code, uid string, sub *models.Subscription) (*models.Coupon, error)
}

// MovieBookmarkRepository stores movie bookmark entries keyed by
// (ownerEmail, contentId).
type MovieBookmarkRepository interface {
	ListByOwner(ctx context.Context, ownerEmail string) ([]*models.MovieBookmark, error)
	// Toggle adds or removes the entry for (ownerEmail, contentID) and
	// returns whether the id is bookmarked after the call.
	Toggle(ctx context.Context, ownerEmail, contentID string, meta models.BookmarkMeta) (bool, error)
}

// SeriesBookmarkRepository stores series/episode bookmark entries keyed by
// (ownerEmail, contentId). Legacy entries may carry the canonical id in
// seriesRef instead of contentId; Toggle must match those too, so an id
// bookmarked through either field is removed rather than duplicated.
type SeriesBookmarkRepository interface {
	ListByOwner(ctx context.Context, ownerEmail string) ([]*models.SeriesBookmark, error)
	Toggle(ctx context.Context, ownerEmail, contentID string, meta models.BookmarkMeta) (bool, error)
}
