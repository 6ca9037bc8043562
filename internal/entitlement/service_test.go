package entitlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"streamhaven-session-go/internal/db"
	"streamhaven-session-go/internal/models"
	"streamhaven-session-go/pkg/cache"
	"streamhaven-session-go/pkg/messagequeue"
)

type fakeSubscriptionRepo struct {
	mu        sync.Mutex
	subs      map[string]*models.Subscription
	getErr    error
	upsertErr error
}

func newFakeSubscriptionRepo() *fakeSubscriptionRepo {
	return &fakeSubscriptionRepo{subs: make(map[string]*models.Subscription)}
}

func (r *fakeSubscriptionRepo) GetByUserID(_ context.Context, uid string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	sub, ok := r.subs[uid]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r *fakeSubscriptionRepo) Upsert(_ context.Context, sub *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return r.upsertErr
	}
	cp := *sub
	r.subs[sub.UserID] = &cp
	return nil
}

type fakeCouponRepo struct {
	mu        sync.Mutex
	coupons   map[string]*models.Coupon
	redeemErr error
	subs      *fakeSubscriptionRepo
}

func newFakeCouponRepo(subs *fakeSubscriptionRepo) *fakeCouponRepo {
	return &fakeCouponRepo{coupons: make(map[string]*models.Coupon), subs: subs}
}

func (r *fakeCouponRepo) GetByCode(_ context.Context, code string) (*models.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[code]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCouponRepo) Redeem(ctx context.Context, code, uid string, sub *models.Subscription) (*models.Coupon, error) {
	r.mu.Lock()
	if r.redeemErr != nil {
		r.mu.Unlock()
		return nil, r.redeemErr
	}
	c, ok := r.coupons[code]
	if !ok {
		r.mu.Unlock()
		return nil, db.ErrNotFound
	}
	if !c.IsActive {
		r.mu.Unlock()
		return nil, db.ErrCouponInactive
	}
	c.IsActive = false
	c.UsedBy = uid
	cp := *c
	r.mu.Unlock()

	if err := r.subs.Upsert(ctx, sub); err != nil {
		return nil, err
	}
	return &cp, nil
}

func newTestService(t *testing.T, now time.Time) (*Service, *fakeSubscriptionRepo, *fakeCouponRepo, cache.Cache) {
	t.Helper()
	subs := newFakeSubscriptionRepo()
	coupons := newFakeCouponRepo(subs)
	hints := cache.NewMemoryCache()
	svc := NewService(subs, coupons, hints, messagequeue.NewNoOpQueue(), zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc, subs, coupons, hints
}

func TestActivateMonthlyComputesEndDate(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	svc, subs, _, _ := newTestService(t, now)

	require.NoError(t, svc.Activate(context.Background(), "u1", models.PlanMonthly))

	stored := subs.subs["u1"]
	require.NotNil(t, stored)
	assert.True(t, stored.IsPremium)
	assert.Equal(t, models.PlanMonthly, stored.PlanType)
	assert.Equal(t, now.AddDate(0, 1, 0).Format(time.RFC3339), stored.EndSubscription)
}

func TestActivateUnknownPlan(t *testing.T) {
	svc, _, _, _ := newTestService(t, time.Now())

	err := svc.Activate(context.Background(), "u1", "gold")
	assert.ErrorIs(t, err, ErrUnknownPlan)
}

func TestDeactivateOverwritesWithFree(t *testing.T) {
	now := time.Now().UTC()
	svc, subs, _, _ := newTestService(t, now)
	require.NoError(t, svc.Activate(context.Background(), "u1", models.PlanYearly))

	require.NoError(t, svc.Deactivate(context.Background(), "u1"))

	stored := subs.subs["u1"]
	require.NotNil(t, stored, "record must be overwritten, not deleted")
	assert.False(t, stored.IsPremium)
	assert.Equal(t, models.PlanFree, stored.PlanType)
}

func TestEnsureFreeOnlyCreatesWhenMissing(t *testing.T) {
	svc, subs, _, _ := newTestService(t, time.Now())

	require.NoError(t, svc.EnsureFree(context.Background(), "u1"))
	assert.Equal(t, models.PlanFree, subs.subs["u1"].PlanType)

	require.NoError(t, svc.Activate(context.Background(), "u1", models.PlanMonthly))
	require.NoError(t, svc.EnsureFree(context.Background(), "u1"))
	assert.Equal(t, models.PlanMonthly, subs.subs["u1"].PlanType, "existing record must be left untouched")
}

func TestLoadFailsClosedOnReadError(t *testing.T) {
	svc, subs, _, _ := newTestService(t, time.Now())
	subs.getErr = errors.New("backend unavailable")

	e := svc.Load(context.Background(), "u1")

	assert.False(t, e.IsPremium)
	assert.Equal(t, models.PlanFree, e.PlanType)
}

func TestLoadPersistsSnapshotHint(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	svc, _, _, _ := newTestService(t, now)
	require.NoError(t, svc.Activate(context.Background(), "u1", models.PlanYearly))

	e := svc.Load(context.Background(), "u1")
	assert.True(t, e.IsPremium)

	snap := svc.CachedSnapshot("u1")
	require.NotNil(t, snap)
	assert.True(t, snap.IsPremium)
	assert.Equal(t, models.PlanYearly, snap.PlanType)
	assert.Equal(t, now.AddDate(1, 0, 0).Format(time.RFC3339), snap.EndDateISO)
	assert.True(t, snap.Timestamp.Equal(now))
}

func TestCachedSnapshotMissingReturnsNil(t *testing.T) {
	svc, _, _, _ := newTestService(t, time.Now())
	assert.Nil(t, svc.CachedSnapshot("nobody"))
}

func TestRedeemCouponSuccess(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	svc, subs, coupons, _ := newTestService(t, now)
	coupons.coupons["WELCOME"] = &models.Coupon{Code: "WELCOME", IsActive: true, PlanType: models.PlanMonthly}

	redeemed, err := svc.RedeemCoupon(context.Background(), "u1", "WELCOME")

	require.NoError(t, err)
	assert.False(t, redeemed.IsActive)
	assert.Equal(t, "u1", redeemed.UsedBy)

	stored := subs.subs["u1"]
	require.NotNil(t, stored)
	assert.True(t, stored.IsPremium)
	assert.Equal(t, models.PlanMonthly, stored.PlanType)
}

func TestRedeemCouponNotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t, time.Now())

	_, err := svc.RedeemCoupon(context.Background(), "u1", "NOPE")
	assert.ErrorIs(t, err, ErrCouponNotFound)
}

func TestRedeemCouponAlreadyUsed(t *testing.T) {
	svc, _, coupons, _ := newTestService(t, time.Now())
	coupons.coupons["USED"] = &models.Coupon{Code: "USED", IsActive: false, PlanType: models.PlanMonthly, UsedBy: "someone"}

	_, err := svc.RedeemCoupon(context.Background(), "u1", "USED")
	assert.ErrorIs(t, err, ErrCouponAlreadyUsed)
}

func TestRedeemCouponConcurrentLossReportsAlreadyUsed(t *testing.T) {
	svc, _, coupons, _ := newTestService(t, time.Now())
	coupons.coupons["RACE"] = &models.Coupon{Code: "RACE", IsActive: true, PlanType: models.PlanMonthly}
	// Passed the fast-path check but lost the compare-and-swap.
	coupons.redeemErr = db.ErrCouponInactive

	_, err := svc.RedeemCoupon(context.Background(), "u1", "RACE")
	assert.ErrorIs(t, err, ErrCouponAlreadyUsed)
}

func TestRedeemCouponActivationFailure(t *testing.T) {
	svc, _, coupons, _ := newTestService(t, time.Now())
	coupons.coupons["OK"] = &models.Coupon{Code: "OK", IsActive: true, PlanType: models.PlanMonthly}
	coupons.redeemErr = errors.New("transaction aborted")

	_, err := svc.RedeemCoupon(context.Background(), "u1", "OK")
	assert.ErrorIs(t, err, ErrActivationFailed)
}

func TestRedeemCouponUnknownPlan(t *testing.T) {
	svc, _, coupons, _ := newTestService(t, time.Now())
	coupons.coupons["ODD"] = &models.Coupon{Code: "ODD", IsActive: true, PlanType: "gold"}

	_, err := svc.RedeemCoupon(context.Background(), "u1", "ODD")
	assert.ErrorIs(t, err, ErrUnknownPlan)

	// Validation failed before the swap, so the coupon must stay active.
	c, err := coupons.GetByCode(context.Background(), "ODD")
	require.NoError(t, err)
	assert.True(t, c.IsActive)
}
