// Package entitlement turns raw subscription records into entitlement
// decisions and manages plan activation, downgrade and coupon redemption.
package entitlement

import (
	"math"
	"time"

	"streamhaven-session-go/internal/models"
)

// millisPerDay is the divisor for the days-remaining ceiling division.
const millisPerDay = 86_400_000

// Entitlement is the resolved entitlement decision exposed to the rest of
// the application. DaysRemaining is nil for free and lifetime plans and may
// be negative for records that expired but were not yet downgraded.
type Entitlement struct {
	IsPremium     bool       `json:"isPremium"`
	PlanType      string     `json:"planType"`
	EndDate       *time.Time `json:"endDate,omitempty"`
	DaysRemaining *int       `json:"daysRemaining,omitempty"`
}

// Free returns the safe fail-closed default: non-premium on the free plan.
func Free() Entitlement {
	return Entitlement{PlanType: models.PlanFree}
}

// Resolve derives the entitlement decision from a subscription record.
// A nil record, and any record whose end date cannot be parsed, resolves to
// the free default; entitlement must always resolve to some safe value and
// must never fail open into premium.
func Resolve(sub *models.Subscription, now time.Time) Entitlement {
	if sub == nil {
		return Free()
	}

	end, parseErr := parseEndDate(sub.EndSubscription)

	// Lifetime plans are exempt from the expiry comparison: the stored flag
	// is authoritative and no countdown is exposed.
	if sub.PlanType == models.PlanLifetime {
		e := Entitlement{IsPremium: sub.IsPremium, PlanType: sub.PlanType}
		if parseErr == nil {
			e.EndDate = &end
		}
		return e
	}

	if parseErr != nil {
		return Free()
	}

	days := int(math.Ceil(float64(end.Sub(now).Milliseconds()) / float64(millisPerDay)))
	return Entitlement{
		IsPremium:     sub.IsPremium && end.After(now),
		PlanType:      sub.PlanType,
		EndDate:       &end,
		DaysRemaining: &days,
	}
}

// parseEndDate parses the stored endSubscription string. RFC 3339 is the
// format this engine writes; the date-only form appears in documents written
// by older clients.
func parseEndDate(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

// endDateFor computes the subscription end for a plan activated at now:
// one calendar month for monthly, one year for yearly, and a hundred years
// for lifetime (the stored date is never consulted for lifetime expiry).
func endDateFor(plan string, now time.Time) (time.Time, bool) {
	switch plan {
	case models.PlanMonthly:
		return now.AddDate(0, 1, 0), true
	case models.PlanYearly:
		return now.AddDate(1, 0, 0), true
	case models.PlanLifetime:
		return now.AddDate(100, 0, 0), true
	default:
		return time.Time{}, false
	}
}
