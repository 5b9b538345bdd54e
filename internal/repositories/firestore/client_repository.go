package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/brewcoin/api/internal/domain"
	pfirestore "github.com/brewcoin/api/internal/platform/firestore"
)

const clientsCollection = "clients"

type clientDocument struct {
	Name                string    `firestore:"name"`
	Phone               string    `firestore:"phone,omitempty"`
	CoinBalance         int64     `firestore:"coinBalance"`
	LifetimeSpend       int64     `firestore:"lifetimeSpend"`
	OrderCount          int64     `firestore:"orderCount"`
	DiscountTierPercent int       `firestore:"discountTierPercent"`
	LastActivityAt      time.Time `firestore:"lastActivityAt,omitempty"`
	CreatedAt           time.Time `firestore:"createdAt"`
	UpdatedAt           time.Time `firestore:"updatedAt"`
}

func encodeClient(client domain.Client) clientDocument {
	return clientDocument{
		Name:                client.Name,
		Phone:               client.Phone,
		CoinBalance:         client.CoinBalance,
		LifetimeSpend:       client.LifetimeSpend,
		OrderCount:          client.OrderCount,
		DiscountTierPercent: client.DiscountTierPercent,
		LastActivityAt:      client.LastActivityAt,
		CreatedAt:           client.CreatedAt,
		UpdatedAt:           client.UpdatedAt,
	}
}

func decodeClient(id string, doc clientDocument) domain.Client {
	return domain.Client{
		ID:                  id,
		Name:                doc.Name,
		Phone:               doc.Phone,
		CoinBalance:         doc.CoinBalance,
		LifetimeSpend:       doc.LifetimeSpend,
		OrderCount:          doc.OrderCount,
		DiscountTierPercent: doc.DiscountTierPercent,
		LastActivityAt:      doc.LastActivityAt,
		CreatedAt:           doc.CreatedAt,
		UpdatedAt:           doc.UpdatedAt,
	}
}

// ClientRepository implements repositories.ClientRepository backed by Firestore.
type ClientRepository struct {
	provider *pfirestore.Provider
	clients  *pfirestore.BaseRepository[clientDocument]
}

// NewClientRepository constructs a Firestore-backed client repository.
func NewClientRepository(provider *pfirestore.Provider) (*ClientRepository, error) {
	if provider == nil {
		return nil, errors.New("client repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[clientDocument](provider, clientsCollection)
	return &ClientRepository{
		provider: provider,
		clients:  base,
	}, nil
}

// Get fetches a loyalty account by client ID.
func (r *ClientRepository) Get(ctx context.Context, clientID string) (domain.Client, error) {
	doc, err := r.clients.Get(ctx, clientID)
	if err != nil {
		return domain.Client{}, err
	}
	return decodeClient(doc.ID, doc.Data), nil
}

// ApplyLoyalty runs apply against the current record inside a transaction so
// concurrent settlements never lose a balance update.
func (r *ClientRepository) ApplyLoyalty(ctx context.Context, clientID string, apply func(domain.Client) domain.Client) (domain.Client, error) {
	if r == nil || r.provider == nil {
		return domain.Client{}, errors.New("client repository not initialised")
	}
	if apply == nil {
		return domain.Client{}, errors.New("apply function is required")
	}
	id := strings.TrimSpace(clientID)
	if id == "" {
		return domain.Client{}, errors.New("client id is required")
	}

	var updated domain.Client
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.clients.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc clientDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore clients decode %s: %w", id, err)
		}

		updated = apply(decodeClient(snapshot.Ref.ID, doc))
		updated.ID = id
		return tx.Set(ref, encodeClient(updated))
	})
	if err != nil {
		return domain.Client{}, pfirestore.WrapError("clients.apply_loyalty", err)
	}
	return updated, nil
}
