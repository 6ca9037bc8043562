package models

import "time"

// Presence values stored on the profile document. Delivery of the final
// "offline" write on process termination is best-effort, so consumers that
// render "who is online" displays should treat LastSeen staleness as the
// authoritative signal rather than trusting Presence alone.
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
	PresenceIdle    = "idle"
	PresenceAway    = "away"
)

// Defaults applied when a profile is created on first login.
const (
	DefaultTheme    = "dark"
	DefaultLanguage = "en"
)

// UserProfile is the profile document mirrored into local session state.
// The Firebase Auth UID is the Firestore document ID.
type UserProfile struct {
	UID         string    `json:"uid" firestore:"-"`
	DisplayName string    `json:"displayName,omitempty" firestore:"displayName"`
	Email       string    `json:"email" firestore:"email"`
	PhotoURL    string    `json:"photoURL,omitempty" firestore:"photoURL"`
	Theme       string    `json:"theme" firestore:"theme"`
	Language    string    `json:"language" firestore:"language"`
	Presence    string    `json:"presence" firestore:"presence"`
	LastSeen    time.Time `json:"lastSeen" firestore:"lastSeen"`
	// BookmarkedIDs is a legacy combined field kept in sync for older clients.
	// The authoritative bookmark state lives in the two bookmark collections.
	BookmarkedIDs []string  `json:"bookmarkedIds" firestore:"bookmarkedIds"`
	IsAdmin       bool      `json:"isAdmin" firestore:"isAdmin"`
	CreatedAt     time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	UpdatedAt     time.Time `json:"updatedAt" firestore:"updatedAt,serverTimestamp"`
}
