package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"streamhaven-session-go/internal/models"
)

// ErrCouponInactive is returned when a redemption loses the compare-and-swap
// on the coupon's isActive flag, i.e. the coupon was already used.
var ErrCouponInactive = errors.New("coupon is no longer active")

// firestoreCouponRepository implements CouponRepository using Firestore.
// The coupon code is the document ID, which enforces case-sensitive
// uniqueness of codes.
type firestoreCouponRepository struct {
	client *firestore.Client
}

// NewFirestoreCouponRepository creates a new Firestore-backed CouponRepository.
func NewFirestoreCouponRepository(client *firestore.Client) CouponRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for CouponRepository.")
	}
	return &firestoreCouponRepository{client: client}
}

// GetByCode retrieves a coupon document by its code.
func (r *firestoreCouponRepository) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	if code == "" {
		return nil, errors.New("code cannot be empty for GetByCode operation")
	}
	docSnap, err := r.client.Collection(couponsCollection).Doc(code).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("coupon '%s' not found: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get coupon '%s': %w", code, err)
	}

	var coupon models.Coupon
	if err := docSnap.DataTo(&coupon); err != nil {
		return nil, fmt.Errorf("failed to decode coupon data for '%s': %w", code, err)
	}
	coupon.Code = docSnap.Ref.ID

	return &coupon, nil
}

// Redeem flips the coupon to inactive and writes the subscription upgrade in
// one Firestore transaction. The isActive check inside the transaction is the
// compare-and-swap that guarantees a coupon is redeemed at most once even
// under concurrent attempts.
func (r *firestoreCouponRepository) Redeem(ctx context.Context, code, uid string, sub *models.Subscription) (*models.Coupon, error) {
	if code == "" || uid == "" || sub == nil {
		return nil, errors.New("code, uid and subscription are required for Redeem operation")
	}

	couponRef := r.client.Collection(couponsCollection).Doc(code)
	subRef := r.client.Collection(subscriptionsCollection).Doc(uid)

	var redeemed models.Coupon
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(couponRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("coupon '%s' not found: %w", code, ErrNotFound)
			}
			return fmt.Errorf("failed to read coupon '%s': %w", code, err)
		}

		var coupon models.Coupon
		if err := snap.DataTo(&coupon); err != nil {
			return fmt.Errorf("failed to decode coupon data for '%s': %w", code, err)
		}
		if !coupon.IsActive {
			return fmt.Errorf("coupon '%s': %w", code, ErrCouponInactive)
		}

		now := time.Now().UTC()
		coupon.Code = snap.Ref.ID
		coupon.IsActive = false
		coupon.UsedBy = uid
		coupon.UsedAt = &now

		if err := tx.Set(couponRef, &coupon); err != nil {
			return fmt.Errorf("failed to mark coupon '%s' as used: %w", code, err)
		}
		if err := tx.Set(subRef, sub); err != nil {
			return fmt.Errorf("failed to write subscription for uid '%s': %w", uid, err)
		}

		redeemed = coupon
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &redeemed, nil
}
