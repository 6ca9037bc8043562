package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamhaven-session-go/internal/models"
)

func TestResolveNilRecordIsFree(t *testing.T) {
	e := Resolve(nil, time.Now())

	assert.False(t, e.IsPremium)
	assert.Equal(t, models.PlanFree, e.PlanType)
	assert.Nil(t, e.EndDate)
	assert.Nil(t, e.DaysRemaining)
}

func TestResolveActiveMonthly(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	end := now.Add(36 * time.Hour)
	sub := &models.Subscription{
		UserID:          "u1",
		IsPremium:       true,
		PlanType:        models.PlanMonthly,
		EndSubscription: end.Format(time.RFC3339),
	}

	e := Resolve(sub, now)

	assert.True(t, e.IsPremium)
	require.NotNil(t, e.DaysRemaining)
	// 36 hours is a partial second day; the countdown rounds up.
	assert.Equal(t, 2, *e.DaysRemaining)
	require.NotNil(t, e.EndDate)
	assert.True(t, e.EndDate.Equal(end))
}

func TestResolveExpiredRecordIsNotPremium(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	sub := &models.Subscription{
		UserID:          "u1",
		IsPremium:       true,
		PlanType:        models.PlanYearly,
		EndSubscription: now.Add(-49 * time.Hour).Format(time.RFC3339),
	}

	e := Resolve(sub, now)

	assert.False(t, e.IsPremium)
	require.NotNil(t, e.DaysRemaining)
	// Expired records expose a negative countdown instead of clamping to zero.
	assert.Equal(t, -2, *e.DaysRemaining)
}

func TestResolveFlagOffWinsOverFutureDate(t *testing.T) {
	now := time.Now()
	sub := &models.Subscription{
		UserID:          "u1",
		IsPremium:       false,
		PlanType:        models.PlanMonthly,
		EndSubscription: now.AddDate(0, 1, 0).Format(time.RFC3339),
	}

	assert.False(t, Resolve(sub, now).IsPremium)
}

func TestResolveLifetimeIgnoresExpiry(t *testing.T) {
	now := time.Now()
	sub := &models.Subscription{
		UserID:          "u1",
		IsPremium:       true,
		PlanType:        models.PlanLifetime,
		EndSubscription: now.Add(-24 * time.Hour).Format(time.RFC3339),
	}

	e := Resolve(sub, now)

	assert.True(t, e.IsPremium)
	assert.Equal(t, models.PlanLifetime, e.PlanType)
	assert.Nil(t, e.DaysRemaining)
}

func TestResolveLifetimeWithUnparseableDate(t *testing.T) {
	sub := &models.Subscription{
		UserID:          "u1",
		IsPremium:       true,
		PlanType:        models.PlanLifetime,
		EndSubscription: "not-a-date",
	}

	e := Resolve(sub, time.Now())

	assert.True(t, e.IsPremium)
	assert.Nil(t, e.EndDate)
}

func TestResolveUnparseableDateFailsClosed(t *testing.T) {
	sub := &models.Subscription{
		UserID:          "u1",
		IsPremium:       true,
		PlanType:        models.PlanMonthly,
		EndSubscription: "garbage",
	}

	e := Resolve(sub, time.Now())

	assert.False(t, e.IsPremium)
	assert.Equal(t, models.PlanFree, e.PlanType)
}

func TestResolveAcceptsDateOnlyFormat(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	sub := &models.Subscription{
		UserID:          "u1",
		IsPremium:       true,
		PlanType:        models.PlanMonthly,
		EndSubscription: "2025-04-10",
	}

	e := Resolve(sub, now)

	assert.True(t, e.IsPremium)
	require.NotNil(t, e.DaysRemaining)
	assert.Equal(t, 31, *e.DaysRemaining)
}

func TestEndDateForPlans(t *testing.T) {
	now := time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		plan string
		want time.Time
		ok   bool
	}{
		{"monthly", models.PlanMonthly, now.AddDate(0, 1, 0), true},
		{"yearly", models.PlanYearly, now.AddDate(1, 0, 0), true},
		{"lifetime", models.PlanLifetime, now.AddDate(100, 0, 0), true},
		{"free is not activatable", models.PlanFree, time.Time{}, false},
		{"unknown", "gold", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := endDateFor(tt.plan, now)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, got.Equal(tt.want))
			}
		})
	}
}
