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

// firestoreSubscriptionRepository implements SubscriptionRepository using
// Firestore. The user UID is the document ID, which enforces the one
// subscription per user invariant at the storage layer.
type firestoreSubscriptionRepository struct {
	client *firestore.Client
}

// NewFirestoreSubscriptionRepository creates a new Firestore-backed
// SubscriptionRepository.
func NewFirestoreSubscriptionRepository(client *firestore.Client) SubscriptionRepository {
	if client == nil {
		log.Fatal("Firestore client is not initialized for SubscriptionRepository.")
	}
	return &firestoreSubscriptionRepository{client: client}
}

// GetByUserID retrieves the subscription document for a user.
func (r *firestoreSubscriptionRepository) GetByUserID(ctx context.Context, uid string) (*models.Subscription, error) {
	if uid == "" {
		return nil, errors.New("uid cannot be empty for GetByUserID operation")
	}
	docSnap, err := r.client.Collection(subscriptionsCollection).Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("subscription for uid '%s' not found: %w", uid, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get subscription for uid '%s': %w", uid, err)
	}

	var sub models.Subscription
	if err := docSnap.DataTo(&sub); err != nil {
		return nil, fmt.Errorf("failed to decode subscription data for uid '%s': %w", uid, err)
	}
	sub.UserID = docSnap.Ref.ID

	return &sub, nil
}

// Upsert overwrites the user's subscription document, creating it if absent.
// Subscriptions are never deleted, only overwritten (downgrades included).
func (r *firestoreSubscriptionRepository) Upsert(ctx context.Context, sub *models.Subscription) error {
	if sub == nil || sub.UserID == "" {
		return errors.New("subscription with a user ID is required for Upsert operation")
	}
	_, err := r.client.Collection(subscriptionsCollection).Doc(sub.UserID).Set(ctx, sub)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription for uid '%s': %w", sub.UserID, err)
	}
	return nil
}
