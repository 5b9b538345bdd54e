package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/brewcoin/api/internal/domain"
	pfirestore "github.com/brewcoin/api/internal/platform/firestore"
	"github.com/brewcoin/api/internal/repositories"
)

const inventoryCollection = "inventory"

type inventoryDocument struct {
	ProductID  string    `firestore:"productId"`
	LocationID string    `firestore:"locationId"`
	Quantity   int64     `firestore:"quantity"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

func decodeInventory(doc inventoryDocument) domain.InventoryRecord {
	return domain.InventoryRecord{
		ProductID:  doc.ProductID,
		LocationID: doc.LocationID,
		Quantity:   doc.Quantity,
		UpdatedAt:  doc.UpdatedAt,
	}
}

// InventoryRepository implements repositories.InventoryRepository backed by Firestore.
// Documents are keyed by "<productID>_<locationID>" so lookups skip a query.
type InventoryRepository struct {
	provider *pfirestore.Provider
	stock    *pfirestore.BaseRepository[inventoryDocument]
}

// NewInventoryRepository constructs a Firestore-backed inventory repository.
func NewInventoryRepository(provider *pfirestore.Provider) (*InventoryRepository, error) {
	if provider == nil {
		return nil, errors.New("inventory repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[inventoryDocument](provider, inventoryCollection)
	return &InventoryRepository{
		provider: provider,
		stock:    base,
	}, nil
}

func inventoryDocID(productID, locationID string) (string, error) {
	productID = strings.TrimSpace(productID)
	locationID = strings.TrimSpace(locationID)
	if productID == "" || locationID == "" {
		return "", errors.New("product id and location id are required")
	}
	return fmt.Sprintf("%s_%s", productID, locationID), nil
}

// Get fetches the stock row for one product at one location.
func (r *InventoryRepository) Get(ctx context.Context, productID, locationID string) (domain.InventoryRecord, error) {
	id, err := inventoryDocID(productID, locationID)
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	doc, err := r.stock.Get(ctx, id)
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	return decodeInventory(doc.Data), nil
}

// ListByLocation returns every stock row held at the given location.
func (r *InventoryRepository) ListByLocation(ctx context.Context, locationID string) ([]domain.InventoryRecord, error) {
	locationID = strings.TrimSpace(locationID)
	if locationID == "" {
		return nil, errors.New("location id is required")
	}

	docs, err := r.stock.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("locationId", "==", locationID).OrderBy("productId", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	records := make([]domain.InventoryRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, decodeInventory(doc.Data))
	}
	return records, nil
}

// Put upserts a stock row, replacing any existing quantity.
func (r *InventoryRepository) Put(ctx context.Context, record domain.InventoryRecord) (domain.InventoryRecord, error) {
	id, err := inventoryDocID(record.ProductID, record.LocationID)
	if err != nil {
		return domain.InventoryRecord{}, err
	}
	if record.Quantity < 0 {
		record.Quantity = 0
	}

	doc := inventoryDocument{
		ProductID:  strings.TrimSpace(record.ProductID),
		LocationID: strings.TrimSpace(record.LocationID),
		Quantity:   record.Quantity,
		UpdatedAt:  record.UpdatedAt,
	}
	if err := r.stock.Set(ctx, id, doc); err != nil {
		return domain.InventoryRecord{}, err
	}
	return decodeInventory(doc), nil
}

// DecrementClamped atomically applies quantity = max(0, quantity - qty) inside
// a transaction. A missing row is reported via Found=false, never as an error.
func (r *InventoryRepository) DecrementClamped(ctx context.Context, productID, locationID string, qty int64) (repositories.DecrementResult, error) {
	if r == nil || r.provider == nil {
		return repositories.DecrementResult{}, errors.New("inventory repository not initialised")
	}
	id, err := inventoryDocID(productID, locationID)
	if err != nil {
		return repositories.DecrementResult{}, err
	}
	if qty < 0 {
		return repositories.DecrementResult{}, fmt.Errorf("decrement quantity must be non-negative, got %d", qty)
	}

	var result repositories.DecrementResult
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.stock.DocumentRef(ctx, id)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			result = repositories.DecrementResult{Found: false}
			return nil
		}
		if err != nil {
			return err
		}

		var doc inventoryDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore inventory decode %s: %w", id, err)
		}

		before := doc.Quantity
		after := before - qty
		if after < 0 {
			after = 0
		}
		if err := tx.Update(ref, []firestore.Update{
			{Path: "quantity", Value: after},
			{Path: "updatedAt", Value: time.Now().UTC()},
		}); err != nil {
			return err
		}
		result = repositories.DecrementResult{Found: true, Before: before, After: after}
		return nil
	})
	if err != nil {
		return repositories.DecrementResult{}, pfirestore.WrapError("inventory.decrement", err)
	}
	return result, nil
}
