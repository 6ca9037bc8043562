package models

import "time"

// Coupon grants a premium plan when redeemed. The code is case-sensitive and
// doubles as the document ID, which enforces uniqueness. A coupon transitions
// IsActive true -> false exactly once, atomically with the subscription
// upgrade it pays for.
type Coupon struct {
	Code     string     `json:"code" firestore:"code"`
	IsActive bool       `json:"isActive" firestore:"isActive"`
	PaidBy   string     `json:"paidBy,omitempty" firestore:"paidBy"`
	PlanType string     `json:"planType" firestore:"planType"`
	UsedBy   string     `json:"usedBy,omitempty" firestore:"usedBy"`
	UsedAt   *time.Time `json:"usedAt,omitempty" firestore:"usedAt"`
}
