// Package bookmarks maintains a merged, duplicate-free set of bookmarked
// content ids across the two independently-keyed remote collections (movie
// bookmarks and series/episode bookmarks), with optimistic local mutation.
package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"streamhaven-session-go/internal/db"
	"streamhaven-session-go/internal/models"
)

// ErrNotLoaded is returned by Toggle before a session's bookmarks are loaded.
var ErrNotLoaded = errors.New("bookmarks not loaded for a session")

// Synchronizer presents a single bookmarked-id set regardless of which
// collection backs a given item. Local state is only mutated after a remote
// toggle confirms success, so a failed toggle leaves the pre-toggle truth
// visible.
type Synchronizer struct {
	movies   db.MovieBookmarkRepository
	series   db.SeriesBookmarkRepository
	profiles db.ProfileRepository
	logger   *zap.Logger

	mu         sync.Mutex
	ownerUID   string
	ownerEmail string
	loaded     bool
	ids        []string
}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer(movies db.MovieBookmarkRepository, series db.SeriesBookmarkRepository, profiles db.ProfileRepository, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		movies:   movies,
		series:   series,
		profiles: profiles,
		logger:   logger,
	}
}

// Load fetches the owner's entries from both collections and exposes the
// concatenation: movie ids first, then series ids. The id spaces of the two
// shapes are disjoint in practice, so no cross-shape dedup is applied.
func (s *Synchronizer) Load(ctx context.Context, uid, email string) error {
	movieEntries, err := s.movies.ListByOwner(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to load movie bookmarks: %w", err)
	}
	seriesEntries, err := s.series.ListByOwner(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to load series bookmarks: %w", err)
	}

	ids := make([]string, 0, len(movieEntries)+len(seriesEntries))
	for _, e := range movieEntries {
		ids = append(ids, e.ContentID)
	}
	ids = append(ids, s.mergeSeriesIDs(seriesEntries)...)

	s.mu.Lock()
	s.ownerUID = uid
	s.ownerEmail = email
	s.loaded = true
	s.ids = ids
	s.mu.Unlock()
	return nil
}

// mergeSeriesIDs extracts canonical ids from series records, dropping later
// duplicates. Two records can resolve to the same canonical id through the
// direct-id and resolved-reference lookup paths; the first occurrence wins.
// A collision is surfaced as a data-integrity warning rather than dropped
// silently.
func (s *Synchronizer) mergeSeriesIDs(entries []*models.SeriesBookmark) []string {
	seen := make(map[string]struct{}, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		id := e.CanonicalID()
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			s.logger.Warn("Duplicate series bookmark resolves to the same canonical id",
				zap.String("contentId", id), zap.String("entryId", e.ID))
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// IDs returns a copy of the merged bookmarked-id set.
func (s *Synchronizer) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Toggle routes the toggle to the shape-appropriate collection. The remote
// store determines and returns the new membership; on success the local set
// is updated by exact removal or append (never a full reload) and the id is
// mirrored into the legacy combined field on the profile. On failure the
// local set is untouched and the error propagates to the caller.
func (s *Synchronizer) Toggle(ctx context.Context, contentID string, meta models.BookmarkMeta, isSeries bool) (bool, error) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return false, ErrNotLoaded
	}
	uid, email := s.ownerUID, s.ownerEmail
	s.mu.Unlock()

	var bookmarked bool
	var err error
	if isSeries {
		bookmarked, err = s.series.Toggle(ctx, email, contentID, meta)
	} else {
		bookmarked, err = s.movies.Toggle(ctx, email, contentID, meta)
	}
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	if bookmarked {
		if !contains(s.ids, contentID) {
			s.ids = append(s.ids, contentID)
		}
	} else {
		s.ids = remove(s.ids, contentID)
	}
	mirror := make([]string, len(s.ids))
	copy(mirror, s.ids)
	s.mu.Unlock()

	// Legacy mirror for older clients that still read the combined array off
	// the profile document. Best-effort.
	if err := s.profiles.SetFields(ctx, uid, map[string]interface{}{
		"bookmarkedIds": mirror,
	}); err != nil {
		s.logger.Warn("Failed to mirror bookmarks to profile", zap.String("uid", uid), zap.Error(err))
	}

	return bookmarked, nil
}

// Reset clears all session-scoped state. Called on logout so no bookmark data
// leaks into the next session.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	s.ownerUID = ""
	s.ownerEmail = ""
	s.loaded = false
	s.ids = nil
	s.mu.Unlock()
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
