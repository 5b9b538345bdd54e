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

const productsCollection = "products"

type productDocument struct {
	Name      string    `firestore:"name"`
	PriceCash int64     `firestore:"priceCash"`
	PriceCard int64     `firestore:"priceCard"`
	Active    bool      `firestore:"active"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func decodeProduct(id string, doc productDocument) domain.Product {
	return domain.Product{
		ID:        id,
		Name:      doc.Name,
		PriceCash: doc.PriceCash,
		PriceCard: doc.PriceCard,
		Active:    doc.Active,
		UpdatedAt: doc.UpdatedAt,
	}
}

// ProductRepository implements repositories.ProductRepository backed by Firestore.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productsCollection)
	return &ProductRepository{
		provider: provider,
		products: base,
	}, nil
}

// GetMany fetches catalog entries for the given product IDs in a single batch.
// Missing products are simply absent from the returned map.
func (r *ProductRepository) GetMany(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("product repository not initialised")
	}

	refs := make([]*firestore.DocumentRef, 0, len(productIDs))
	for _, id := range productIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		ref, err := r.products.DocumentRef(ctx, id)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return map[string]domain.Product{}, nil
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	snapshots, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("products.get_many", err)
	}

	products := make(map[string]domain.Product, len(snapshots))
	for _, snapshot := range snapshots {
		if snapshot == nil || !snapshot.Exists() {
			continue
		}
		var doc productDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return nil, pfirestore.WrapError("products.get_many", err)
		}
		products[snapshot.Ref.ID] = decodeProduct(snapshot.Ref.ID, doc)
	}
	return products, nil
}
