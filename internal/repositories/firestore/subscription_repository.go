package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/brewcoin/api/internal/domain"
	pfirestore "github.com/brewcoin/api/internal/platform/firestore"
)

const subscriptionsCollection = "stock_subscriptions"

type subscriptionDocument struct {
	ClientID   string    `firestore:"clientId"`
	ProductID  string    `firestore:"productId"`
	LocationID string    `firestore:"locationId"`
	ChatID     string    `firestore:"chatId,omitempty"`
	Notified   bool      `firestore:"notified"`
	CreatedAt  time.Time `firestore:"createdAt"`
	NotifiedAt time.Time `firestore:"notifiedAt,omitempty"`
}

func decodeSubscription(id string, doc subscriptionDocument) domain.StockSubscription {
	return domain.StockSubscription{
		ID:         id,
		ClientID:   doc.ClientID,
		ProductID:  doc.ProductID,
		LocationID: doc.LocationID,
		ChatID:     doc.ChatID,
		CreatedAt:  doc.CreatedAt,
		NotifiedAt: doc.NotifiedAt,
	}
}

// SubscriptionRepository implements repositories.SubscriptionRepository backed by Firestore.
type SubscriptionRepository struct {
	provider      *pfirestore.Provider
	subscriptions *pfirestore.BaseRepository[subscriptionDocument]
}

// NewSubscriptionRepository constructs a Firestore-backed subscription repository.
func NewSubscriptionRepository(provider *pfirestore.Provider) (*SubscriptionRepository, error) {
	if provider == nil {
		return nil, errors.New("subscription repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[subscriptionDocument](provider, subscriptionsCollection)
	return &SubscriptionRepository{
		provider:      provider,
		subscriptions: base,
	}, nil
}

// Create stores a new restock subscription.
func (r *SubscriptionRepository) Create(ctx context.Context, sub domain.StockSubscription) (domain.StockSubscription, error) {
	if strings.TrimSpace(sub.ID) == "" {
		return domain.StockSubscription{}, errors.New("subscription id is required")
	}

	doc := subscriptionDocument{
		ClientID:   sub.ClientID,
		ProductID:  sub.ProductID,
		LocationID: sub.LocationID,
		ChatID:     sub.ChatID,
		Notified:   !sub.NotifiedAt.IsZero(),
		CreatedAt:  sub.CreatedAt,
		NotifiedAt: sub.NotifiedAt,
	}

	ref, err := r.subscriptions.DocumentRef(ctx, sub.ID)
	if err != nil {
		return domain.StockSubscription{}, err
	}
	if _, err := ref.Create(ctx, doc); err != nil {
		return domain.StockSubscription{}, pfirestore.WrapError("subscriptions.create", err)
	}
	return sub, nil
}

// ListPending returns subscriptions still awaiting a restock notice, oldest first.
func (r *SubscriptionRepository) ListPending(ctx context.Context, limit int) ([]domain.StockSubscription, error) {
	if limit <= 0 {
		limit = 100
	}

	docs, err := r.subscriptions.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("notified", "==", false).OrderBy("createdAt", firestore.Asc).Limit(limit)
	})
	if err != nil {
		return nil, err
	}

	subs := make([]domain.StockSubscription, 0, len(docs))
	for _, doc := range docs {
		subs = append(subs, decodeSubscription(doc.ID, doc.Data))
	}
	return subs, nil
}

// MarkNotified records that the subscriber has been pinged.
func (r *SubscriptionRepository) MarkNotified(ctx context.Context, subscriptionID string, at time.Time) error {
	return r.subscriptions.Update(ctx, subscriptionID, []firestore.Update{
		{Path: "notified", Value: true},
		{Path: "notifiedAt", Value: at},
	})
}
