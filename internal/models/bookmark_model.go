package models

import "time"

// BookmarkMeta is the display metadata persisted alongside a bookmark entry
// so lists can render without a per-item content lookup.
type BookmarkMeta struct {
	Title     string `json:"title" firestore:"title"`
	PosterURL string `json:"posterUrl,omitempty" firestore:"posterUrl"`
}

// MovieBookmark is an entry in the movie bookmark collection, keyed by
// (OwnerEmail, ContentID). At most one entry exists per key.
type MovieBookmark struct {
	ID         string    `json:"id" firestore:"-"`
	OwnerEmail string    `json:"ownerEmail" firestore:"ownerEmail"`
	ContentID  string    `json:"contentId" firestore:"contentId"`
	Title      string    `json:"title" firestore:"title"`
	PosterURL  string    `json:"posterUrl,omitempty" firestore:"posterUrl"`
	CreatedAt  time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
}

// SeriesBookmark is an entry in the series/episode bookmark collection.
// Legacy documents may carry the canonical id in SeriesRef instead of
// ContentID, so the two lookup paths can resolve to the same id.
type SeriesBookmark struct {
	ID         string    `json:"id" firestore:"-"`
	OwnerEmail string    `json:"ownerEmail" firestore:"ownerEmail"`
	ContentID  string    `json:"contentId,omitempty" firestore:"contentId"`
	SeriesRef  string    `json:"seriesRef,omitempty" firestore:"seriesRef"`
	Title      string    `json:"title" firestore:"title"`
	PosterURL  string    `json:"posterUrl,omitempty" firestore:"posterUrl"`
	CreatedAt  time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
}

// CanonicalID returns the id a series bookmark resolves to, preferring the
// direct ContentID over the resolved SeriesRef.
func (b *SeriesBookmark) CanonicalID() string {
	if b.ContentID != "" {
		return b.ContentID
	}
	return b.SeriesRef
}
