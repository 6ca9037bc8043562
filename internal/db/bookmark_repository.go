package db

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"streamhaven-session-go/internal/models"
)

// firestoreMovieBookmarkRepository implements MovieBookmarkRepository.
type firestoreMovieBookmarkRepository struct {
	client *firestore.Client
}

// NewFirestoreMovieBookmarkRepository creates a new Firestore-backed
// MovieBookmarkRepository.
func NewFirestoreMovieBookmarkRepository(client *firestore.Client) MovieBookmarkRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for MovieBookmarkRepository.")
	}
	return &firestoreMovieBookmarkRepository{client: client}
}

// ListByOwner retrieves all movie bookmark entries for an owner.
func (r *firestoreMovieBookmarkRepository) ListByOwner(ctx context.Context, ownerEmail string) ([]*models.MovieBookmark, error) {
	if ownerEmail == "" {
		return nil, errors.New("ownerEmail cannot be empty for ListByOwner operation")
	}
	iter := r.client.Collection(movieBookmarksCollection).
		Where("ownerEmail", "==", ownerEmail).
		Documents(ctx)
	defer iter.Stop()

	var bookmarks []*models.MovieBookmark
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list movie bookmarks for '%s': %w", ownerEmail, err)
		}
		var bm models.MovieBookmark
		if err := snap.DataTo(&bm); err != nil {
			log.Printf("skipping undecodable movie bookmark %s: %v", snap.Ref.ID, err)
			continue
		}
		bm.ID = snap.Ref.ID
		bookmarks = append(bookmarks, &bm)
	}
	return bookmarks, nil
}

// Toggle adds the entry for (ownerEmail, contentID) if absent, or removes it
// if present, and reports the resulting membership.
func (r *firestoreMovieBookmarkRepository) Toggle(ctx context.Context, ownerEmail, contentID string, meta models.BookmarkMeta) (bool, error) {
	if ownerEmail == "" || contentID == "" {
		return false, errors.New("ownerEmail and contentID are required for Toggle operation")
	}

	existing, err := findBookmarkDoc(ctx, r.client, movieBookmarksCollection, ownerEmail, "contentId", contentID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		if _, err := existing.Delete(ctx); err != nil {
			return false, fmt.Errorf("failed to remove movie bookmark '%s': %w", contentID, err)
		}
		return false, nil
	}

	bm := &models.MovieBookmark{
		OwnerEmail: ownerEmail,
		ContentID:  contentID,
		Title:      meta.Title,
		PosterURL:  meta.PosterURL,
	}
	docID := uuid.NewString()
	if _, err := r.client.Collection(movieBookmarksCollection).Doc(docID).Create(ctx, bm); err != nil {
		return false, fmt.Errorf("failed to create movie bookmark '%s': %w", contentID, err)
	}
	return true, nil
}

// firestoreSeriesBookmarkRepository implements SeriesBookmarkRepository.
type firestoreSeriesBookmarkRepository struct {
	client *firestore.Client
}

// NewFirestoreSeriesBookmarkRepository creates a new Firestore-backed
// SeriesBookmarkRepository.
func NewFirestoreSeriesBookmarkRepository(client *firestore.Client) SeriesBookmarkRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for SeriesBookmarkRepository.")
	}
	return &firestoreSeriesBookmarkRepository{client: client}
}

// ListByOwner retrieves all series bookmark entries for an owner.
func (r *firestoreSeriesBookmarkRepository) ListByOwner(ctx context.Context, ownerEmail string) ([]*models.SeriesBookmark, error) {
	if ownerEmail == "" {
		return nil, errors.New("ownerEmail cannot be empty for ListByOwner operation")
	}
	iter := r.client.Collection(seriesBookmarksCollection).
		Where("ownerEmail", "==", ownerEmail).
		Documents(ctx)
	defer iter.Stop()

	var bookmarks []*models.SeriesBookmark
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list series bookmarks for '%s': %w", ownerEmail, err)
		}
		var bm models.SeriesBookmark
		if err := snap.DataTo(&bm); err != nil {
			log.Printf("skipping undecodable series bookmark %s: %v", snap.Ref.ID, err)
			continue
		}
		bm.ID = snap.Ref.ID
		bookmarks = append(bookmarks, &bm)
	}
	return bookmarks, nil
}

// Toggle adds or removes the series entry for (ownerEmail, contentID) and
// reports the resulting membership.
func (r *firestoreSeriesBookmarkRepository) Toggle(ctx context.Context, ownerEmail, contentID string, meta models.BookmarkMeta) (bool, error) {
	if ownerEmail == "" || contentID == "" {
		return false, errors.New("ownerEmail and contentID are required for Toggle operation")
	}

	existing, err := findBookmarkDoc(ctx, r.client, seriesBookmarksCollection, ownerEmail, "contentId", contentID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		// Legacy documents carry the canonical id in seriesRef instead of
		// contentId. Without this fallback a toggle would create a second
		// entry for an id that is already bookmarked.
		existing, err = findBookmarkDoc(ctx, r.client, seriesBookmarksCollection, ownerEmail, "seriesRef", contentID)
		if err != nil {
			return false, err
		}
	}
	if existing != nil {
		if _, err := existing.Delete(ctx); err != nil {
			return false, fmt.Errorf("failed to remove series bookmark '%s': %w", contentID, err)
		}
		return false, nil
	}

	bm := &models.SeriesBookmark{
		OwnerEmail: ownerEmail,
		ContentID:  contentID,
		Title:      meta.Title,
		PosterURL:  meta.PosterURL,
	}
	docID := uuid.NewString()
	if _, err := r.client.Collection(seriesBookmarksCollection).Doc(docID).Create(ctx, bm); err != nil {
		return false, fmt.Errorf("failed to create series bookmark '%s': %w", contentID, err)
	}
	return true, nil
}

// findBookmarkDoc looks up the single entry for (ownerEmail, idField=id) in a
// bookmark collection. Returns nil when no entry exists.
func findBookmarkDoc(ctx context.Context, client *firestore.Client, collection, ownerEmail, idField, id string) (*firestore.DocumentRef, error) {
	iter := client.Collection(collection).
		Where("ownerEmail", "==", ownerEmail).
		Where(idField, "==", id).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s for '%s': %w", collection, id, err)
	}
	return snap.Ref, nil
}
