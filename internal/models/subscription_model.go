package models

import "time"

// Plan types recognized by the entitlement resolver.
const (
	PlanFree     = "free"
	PlanMonthly  = "monthly"
	PlanYearly   = "yearly"
	PlanLifetime = "lifetime"
)

// Subscription is the premium-subscription document. Exactly one exists per
// user (the user UID is the document ID); it is created lazily with free
// defaults and only ever overwritten, never deleted.
type Subscription struct {
	UserID    string `json:"userId" firestore:"userId"`
	IsPremium bool   `json:"isPremium" firestore:"isPremium"`
	PlanType  string `json:"planType" firestore:"planType"`
	// EndSubscription is an RFC 3339 timestamp kept as a string for
	// compatibility with documents written by older clients.
	EndSubscription string    `json:"endSubscription" firestore:"endSubscription"`
	UpdatedAt       time.Time `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}
