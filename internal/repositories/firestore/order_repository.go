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
	"github.com/brewcoin/api/internal/platform/pagination"
	"github.com/brewcoin/api/internal/repositories"
)

const ordersCollection = "orders"

type orderLineDocument struct {
	ProductID       string `firestore:"productId"`
	Name            string `firestore:"name"`
	Quantity        int64  `firestore:"quantity"`
	UnitPriceCash   int64  `firestore:"unitPriceCash"`
	UnitPriceCard   int64  `firestore:"unitPriceCard"`
	PaymentOverride string `firestore:"paymentOverride,omitempty"`
	UnitPrice       int64  `firestore:"unitPrice"`
	LineTotal       int64  `firestore:"lineTotal"`
}

type orderTotalsDocument struct {
	Subtotal         int64 `firestore:"subtotal"`
	VolumeDiscount   int64 `firestore:"volumeDiscount"`
	LoyaltyDiscount  int64 `firestore:"loyaltyDiscount"`
	CashSavings      int64 `firestore:"cashSavings"`
	CoinsRedeemed    int64 `firestore:"coinsRedeemed"`
	CoinsEarned      int64 `firestore:"coinsEarned"`
	Total            int64 `firestore:"total"`
	FreeUnitEligible bool  `firestore:"freeUnitEligible"`
}

type orderSettlementDocument struct {
	InventoryApplied bool      `firestore:"inventoryApplied"`
	LoyaltyApplied   bool      `firestore:"loyaltyApplied"`
	InventoryLines   []string  `firestore:"inventoryLines,omitempty"`
	NotifiedAt       time.Time `firestore:"notifiedAt,omitempty"`
}

type orderDocument struct {
	Number        int64                   `firestore:"number"`
	ClientID      string                  `firestore:"clientId"`
	LocationID    string                  `firestore:"locationId"`
	PaymentMethod string                  `firestore:"paymentMethod"`
	Status        string                  `firestore:"status"`
	Lines         []orderLineDocument     `firestore:"lines"`
	Totals        orderTotalsDocument     `firestore:"totals"`
	Comment       string                  `firestore:"comment,omitempty"`
	Settlement    orderSettlementDocument `firestore:"settlement"`
	CreatedAt     time.Time               `firestore:"createdAt"`
	UpdatedAt     time.Time               `firestore:"updatedAt"`
}

func encodeOrder(order domain.Order) orderDocument {
	lines := make([]orderLineDocument, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLineDocument{
			ProductID:       line.ProductID,
			Name:            line.Name,
			Quantity:        line.Quantity,
			UnitPriceCash:   line.UnitPriceCash,
			UnitPriceCard:   line.UnitPriceCard,
			PaymentOverride: string(line.PaymentOverride),
			UnitPrice:       line.UnitPrice,
			LineTotal:       line.LineTotal,
		})
	}
	return orderDocument{
		Number:        order.Number,
		ClientID:      order.ClientID,
		LocationID:    order.LocationID,
		PaymentMethod: string(order.PaymentMethod),
		Status:        string(order.Status),
		Lines:         lines,
		Totals: orderTotalsDocument{
			Subtotal:         order.Totals.Subtotal,
			VolumeDiscount:   order.Totals.VolumeDiscount,
			LoyaltyDiscount:  order.Totals.LoyaltyDiscount,
			CashSavings:      order.Totals.CashSavings,
			CoinsRedeemed:    order.Totals.CoinsRedeemed,
			CoinsEarned:      order.Totals.CoinsEarned,
			Total:            order.Totals.Total,
			FreeUnitEligible: order.Totals.FreeUnitEligible,
		},
		Comment: order.Comment,
		Settlement: orderSettlementDocument{
			InventoryApplied: order.Settlement.InventoryApplied,
			LoyaltyApplied:   order.Settlement.LoyaltyApplied,
			InventoryLines:   order.Settlement.InventoryLines,
			NotifiedAt:       order.Settlement.NotifiedAt,
		},
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
	}
}

func decodeOrder(id string, doc orderDocument) domain.Order {
	lines := make([]domain.OrderLine, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		lines = append(lines, domain.OrderLine{
			ProductID:       line.ProductID,
			Name:            line.Name,
			Quantity:        line.Quantity,
			UnitPriceCash:   line.UnitPriceCash,
			UnitPriceCard:   line.UnitPriceCard,
			PaymentOverride: domain.PaymentMethod(line.PaymentOverride),
			UnitPrice:       line.UnitPrice,
			LineTotal:       line.LineTotal,
		})
	}
	return domain.Order{
		ID:            id,
		Number:        doc.Number,
		ClientID:      doc.ClientID,
		LocationID:    doc.LocationID,
		PaymentMethod: domain.PaymentMethod(doc.PaymentMethod),
		Status:        domain.OrderStatus(doc.Status),
		Lines:         lines,
		Totals: domain.OrderTotals{
			Subtotal:         doc.Totals.Subtotal,
			VolumeDiscount:   doc.Totals.VolumeDiscount,
			LoyaltyDiscount:  doc.Totals.LoyaltyDiscount,
			CashSavings:      doc.Totals.CashSavings,
			CoinsRedeemed:    doc.Totals.CoinsRedeemed,
			CoinsEarned:      doc.Totals.CoinsEarned,
			Total:            doc.Totals.Total,
			FreeUnitEligible: doc.Totals.FreeUnitEligible,
		},
		Comment: doc.Comment,
		Settlement: domain.OrderSettlement{
			InventoryApplied: doc.Settlement.InventoryApplied,
			LoyaltyApplied:   doc.Settlement.LoyaltyApplied,
			InventoryLines:   doc.Settlement.InventoryLines,
			NotifiedAt:       doc.Settlement.NotifiedAt,
		},
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

// OrderRepository implements repositories.OrderRepository backed by Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection)
	return &OrderRepository{
		provider: provider,
		orders:   base,
	}, nil
}

// Create persists a new order. An existing document with the same ID is a conflict.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, errors.New("order id is required")
	}

	ref, err := r.orders.DocumentRef(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	if _, err := ref.Create(ctx, encodeOrder(order)); err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.create", err)
	}
	return order, nil
}

// Get fetches an order by ID.
func (r *OrderRepository) Get(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.ID, doc.Data), nil
}

// ListByClient returns a page of the client's orders, newest first.
// Soft-deleted orders are excluded from the page.
func (r *OrderRepository) ListByClient(ctx context.Context, clientID string, params pagination.Params) (repositories.OrderListPage, error) {
	if strings.TrimSpace(clientID) == "" {
		return repositories.OrderListPage{}, errors.New("client id is required")
	}
	params = pagination.Must(params)

	docs, err := r.orders.Query(ctx, func(query firestore.Query) firestore.Query {
		query = query.Where("clientId", "==", clientID)
		query = applyOrderSort(query, params.Orders)
		if len(params.Cursor.StartAfter) > 0 {
			query = query.StartAfter(params.Cursor.StartAfter...)
		}
		return query.Limit(params.PageSize + 1)
	})
	if err != nil {
		return repositories.OrderListPage{}, err
	}

	hasMore := len(docs) > params.PageSize
	if hasMore {
		docs = docs[:params.PageSize]
	}

	page := repositories.OrderListPage{}
	for _, doc := range docs {
		order := decodeOrder(doc.ID, doc.Data)
		if order.Status == domain.OrderStatusDeleted {
			continue
		}
		page.Orders = append(page.Orders, order)
	}

	if hasMore && len(docs) > 0 {
		last := docs[len(docs)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{
			StartAfter: []any{last.Data.CreatedAt, last.ID},
		})
		if err != nil {
			return repositories.OrderListPage{}, fmt.Errorf("orders.list: %w", err)
		}
		page.NextPageToken = token
	}
	return page, nil
}

func applyOrderSort(query firestore.Query, orders []pagination.Order) firestore.Query {
	if len(orders) == 0 {
		return query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
	}
	for _, order := range orders {
		direction := firestore.Asc
		if order.Desc {
			direction = firestore.Desc
		}
		query = query.OrderBy(order.Field, direction)
	}
	return query.OrderBy(firestore.DocumentID, firestore.Asc)
}

// UpdateStatus transitions the order to the given status inside a transaction
// and returns the updated record.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, next domain.OrderStatus, updatedAt time.Time) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}

	var updated domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		snapshot, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var doc orderDocument
		if err := snapshot.DataTo(&doc); err != nil {
			return fmt.Errorf("firestore orders decode %s: %w", orderID, err)
		}

		doc.Status = string(next)
		doc.UpdatedAt = updatedAt
		if err := tx.Update(ref, []firestore.Update{
			{Path: "status", Value: doc.Status},
			{Path: "updatedAt", Value: doc.UpdatedAt},
		}); err != nil {
			return err
		}
		updated = decodeOrder(snapshot.Ref.ID, doc)
		return nil
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.update_status", err)
	}
	return updated, nil
}

// MarkSettlement records which bookkeeping steps have been applied to the order.
func (r *OrderRepository) MarkSettlement(ctx context.Context, orderID string, settlement domain.OrderSettlement, updatedAt time.Time) error {
	updates := []firestore.Update{
		{Path: "settlement.inventoryApplied", Value: settlement.InventoryApplied},
		{Path: "settlement.loyaltyApplied", Value: settlement.LoyaltyApplied},
		{Path: "settlement.inventoryLines", Value: settlement.InventoryLines},
		{Path: "updatedAt", Value: updatedAt},
	}
	if !settlement.NotifiedAt.IsZero() {
		updates = append(updates, firestore.Update{Path: "settlement.notifiedAt", Value: settlement.NotifiedAt})
	}
	if err := r.orders.Update(ctx, orderID, updates); err != nil {
		return err
	}
	return nil
}
