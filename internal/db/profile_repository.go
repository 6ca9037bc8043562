package db

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"streamhaven-session-go/internal/models"
)

// ErrNotFound is returned when a document is not found in Firestore. It is
// shared by all repositories in this package.
var ErrNotFound = errors.New("document not found")

// firestoreProfileRepository implements ProfileRepository using Firestore.
type firestoreProfileRepository struct {
	client *firestore.Client
}

// NewFirestoreProfileRepository creates a new Firestore-backed ProfileRepository.
func NewFirestoreProfileRepository(client *firestore.Client) ProfileRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for ProfileRepository.")
	}
	return &firestoreProfileRepository{client: client}
}

// GetByUID retrieves a profile document by its UID (Firebase Auth UID).
func (r *firestoreProfileRepository) GetByUID(ctx context.Context, uid string) (*models.UserProfile, error) {
	if uid == "" {
		return nil, errors.New("uid cannot be empty for GetByUID operation")
	}
	docSnap, err := r.client.Collection(usersCollection).Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("profile for uid '%s' not found: %w", uid, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile for uid '%s': %w", uid, err)
	}

	var profile models.UserProfile
	if err := docSnap.DataTo(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile data for uid '%s': %w", uid, err)
	}
	profile.UID = docSnap.Ref.ID

	return &profile, nil
}

// Create adds a new profile document. The UID is used as the document ID;
// CreatedAt/UpdatedAt are populated server-side via the serverTimestamp tags.
func (r *firestoreProfileRepository) Create(ctx context.Context, profile *models.UserProfile) error {
	if profile.UID == "" {
		return errors.New("profile UID cannot be empty for Create operation")
	}
	_, err := r.client.Collection(usersCollection).Doc(profile.UID).Create(ctx, profile)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("profile for uid '%s' already exists: %w", profile.UID, err)
		}
		return fmt.Errorf("failed to create profile for uid '%s': %w", profile.UID, err)
	}
	return nil
}

// SetFields merges the given fields into the profile document. Used for the
// field-level writes the engine makes (theme, language, presence, lastSeen,
// the legacy bookmarkedIds mirror) so concurrent writers never clobber each
// other's fields.
func (r *firestoreProfileRepository) SetFields(ctx context.Context, uid string, fields map[string]interface{}) error {
	if uid == "" {
		return errors.New("uid cannot be empty for SetFields operation")
	}
	if len(fields) == 0 {
		return nil
	}
	_, err := r.client.Collection(usersCollection).Doc(uid).Set(ctx, fields, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to set fields on profile '%s': %w", uid, err)
	}
	return nil
}

// Watch starts a snapshot listener on the profile document and delivers each
// snapshot to fn. The listener runs until stop is called or ctx is canceled.
func (r *firestoreProfileRepository) Watch(ctx context.Context, uid string, fn func(*models.UserProfile)) (func(), error) {
	if uid == "" {
		return nil, errors.New("uid cannot be empty for Watch operation")
	}
	watchCtx, cancel := context.WithCancel(ctx)
	iter := r.client.Collection(usersCollection).Doc(uid).Snapshots(watchCtx)

	go func() {
		defer iter.Stop()
		for {
			snap, err := iter.Next()
			if err != nil {
				// Canceled stop or a terminal stream error; either way the
				// listener is done. The session controller guards against
				// acting on a superseded listener, so no callback is made.
				if status.Code(err) != codes.Canceled {
					log.Printf("profile watch for uid '%s' terminated: %v", uid, err)
				}
				return
			}
			if !snap.Exists() {
				fn(nil)
				continue
			}
			var profile models.UserProfile
			if err := snap.DataTo(&profile); err != nil {
				log.Printf("failed to decode profile snapshot for uid '%s': %v", uid, err)
				continue
			}
			profile.UID = snap.Ref.ID
			fn(&profile)
		}
	}()

	return cancel, nil
}
