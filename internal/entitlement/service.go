package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"streamhaven-session-go/internal/db"
	"streamhaven-session-go/internal/models"
	"streamhaven-session-go/pkg/cache"
	"streamhaven-session-go/pkg/messagequeue"
)

// Errors surfaced to callers of coupon redemption and plan activation.
// ErrActivationFailed is the serious one: validation succeeded but the
// entitlement write failed, so the caller should retry rather than
// re-validate.
var (
	ErrCouponNotFound    = errors.New("coupon not found")
	ErrCouponAlreadyUsed = errors.New("coupon has already been used")
	ErrActivationFailed  = errors.New("subscription activation failed")
	ErrUnknownPlan       = errors.New("unknown plan type")
)

// snapshotTTL bounds how long a stale entitlement hint can outlive its last
// refresh in the local store.
const snapshotTTL = 30 * 24 * time.Hour

// Snapshot is the entitlement hint persisted to local durable storage so a
// cold start can render a plausible entitlement before the network round
// trip completes. Never authoritative.
type Snapshot struct {
	IsPremium  bool      `json:"isPremium"`
	PlanType   string    `json:"planType"`
	EndDateISO string    `json:"endDateIso,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// event is the payload published on entitlement changes.
type event struct {
	UserID    string `json:"userId"`
	PlanType  string `json:"planType"`
	IsPremium bool   `json:"isPremium"`
}

// Service loads, activates and downgrades subscriptions and redeems coupons.
type Service struct {
	subs    db.SubscriptionRepository
	coupons db.CouponRepository
	hints   cache.Cache
	events  messagequeue.MessageQueue
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates an entitlement Service.
func NewService(subs db.SubscriptionRepository, coupons db.CouponRepository, hints cache.Cache, events messagequeue.MessageQueue, logger *zap.Logger) *Service {
	return &Service{
		subs:    subs,
		coupons: coupons,
		hints:   hints,
		events:  events,
		logger:  logger,
		now:     time.Now,
	}
}

// Load fetches the user's subscription record and resolves it. Read failures
// resolve to the free default rather than propagating; entitlement is
// fail-closed. Every resolution persists a best-effort snapshot hint.
func (s *Service) Load(ctx context.Context, uid string) Entitlement {
	sub, err := s.subs.GetByUserID(ctx, uid)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			s.logger.Warn("Subscription read failed, resolving to free tier",
				zap.String("uid", uid), zap.Error(err))
		}
		sub = nil
	}

	e := Resolve(sub, s.now())
	s.persistSnapshot(uid, e)
	return e
}

// EnsureFree lazily creates the companion free subscription for a user that
// does not have one yet. Existing records are left untouched.
func (s *Service) EnsureFree(ctx context.Context, uid string) error {
	_, err := s.subs.GetByUserID(ctx, uid)
	if err == nil {
		return nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("failed to check subscription for uid '%s': %w", uid, err)
	}
	return s.subs.Upsert(ctx, s.freeSubscription(uid))
}

// Activate upgrades the user to a premium plan, computing the end date from
// now (+1 month, +1 year or +100 years depending on plan type) and upserting
// the subscription with isPremium=true.
func (s *Service) Activate(ctx context.Context, uid, plan string) error {
	sub, err := s.premiumSubscription(uid, plan)
	if err != nil {
		return err
	}
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("%w: %v", ErrActivationFailed, err)
	}
	s.publishChange(uid, sub)
	return nil
}

// Deactivate downgrades the user to the free plan. The record is overwritten,
// never deleted.
func (s *Service) Deactivate(ctx context.Context, uid string) error {
	sub := s.freeSubscription(uid)
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("failed to downgrade subscription for uid '%s': %w", uid, err)
	}
	s.publishChange(uid, sub)
	return nil
}

// RedeemCoupon validates the coupon and atomically flips it to used while
// writing the premium upgrade. The three failure modes are distinguished:
// unknown code, already-used code, and an activation failure after
// successful validation.
func (s *Service) RedeemCoupon(ctx context.Context, uid, code string) (*models.Coupon, error) {
	coupon, err := s.coupons.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrCouponNotFound, code)
		}
		return nil, fmt.Errorf("failed to look up coupon '%s': %w", code, err)
	}
	if !coupon.IsActive {
		return nil, fmt.Errorf("%w: '%s'", ErrCouponAlreadyUsed, code)
	}

	sub, err := s.premiumSubscription(uid, coupon.PlanType)
	if err != nil {
		return nil, err
	}

	redeemed, err := s.coupons.Redeem(ctx, code, uid, sub)
	if err != nil {
		// A concurrent redemption wins the compare-and-swap; report it the
		// same way as the fast-path check.
		if errors.Is(err, db.ErrCouponInactive) {
			return nil, fmt.Errorf("%w: '%s'", ErrCouponAlreadyUsed, code)
		}
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrCouponNotFound, code)
		}
		return nil, fmt.Errorf("%w: %v", ErrActivationFailed, err)
	}

	s.publishChange(uid, sub)
	return redeemed, nil
}

// CachedSnapshot returns the persisted entitlement hint for a user, or nil
// when none exists or it cannot be decoded.
func (s *Service) CachedSnapshot(uid string) *Snapshot {
	raw, err := s.hints.Get(snapshotKey(uid))
	if err != nil {
		return nil
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		s.logger.Warn("Discarding undecodable entitlement snapshot", zap.String("uid", uid), zap.Error(err))
		return nil
	}
	return &snap
}

// persistSnapshot writes the entitlement hint best-effort. The end date is
// validated before formatting so an invalid date can never fault the write.
func (s *Service) persistSnapshot(uid string, e Entitlement) {
	snap := Snapshot{
		IsPremium: e.IsPremium,
		PlanType:  e.PlanType,
		Timestamp: s.now(),
	}
	if e.EndDate != nil && !e.EndDate.IsZero() {
		snap.EndDateISO = e.EndDate.UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(snap)
	if err != nil {
		s.logger.Warn("Failed to encode entitlement snapshot", zap.String("uid", uid), zap.Error(err))
		return
	}
	if err := s.hints.Set(snapshotKey(uid), body, snapshotTTL); err != nil {
		s.logger.Warn("Failed to persist entitlement snapshot", zap.String("uid", uid), zap.Error(err))
	}
}

// publishChange emits the entitlement change event best-effort.
func (s *Service) publishChange(uid string, sub *models.Subscription) {
	body, err := json.Marshal(event{UserID: uid, PlanType: sub.PlanType, IsPremium: sub.IsPremium})
	if err != nil {
		return
	}
	if err := s.events.Publish(messagequeue.EntitlementQueue, body); err != nil {
		s.logger.Warn("Failed to publish entitlement event", zap.String("uid", uid), zap.Error(err))
	}
}

func (s *Service) freeSubscription(uid string) *models.Subscription {
	return &models.Subscription{
		UserID:          uid,
		IsPremium:       false,
		PlanType:        models.PlanFree,
		EndSubscription: s.now().UTC().Format(time.RFC3339),
	}
}

func (s *Service) premiumSubscription(uid, plan string) (*models.Subscription, error) {
	end, ok := endDateFor(plan, s.now())
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownPlan, plan)
	}
	return &models.Subscription{
		UserID:          uid,
		IsPremium:       true,
		PlanType:        plan,
		EndSubscription: end.UTC().Format(time.RFC3339),
	}, nil
}

func snapshotKey(uid string) string {
	return "entitlement:" + uid
}
