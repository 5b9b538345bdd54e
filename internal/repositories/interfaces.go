package repositories

import (
	"context"
	"time"

	domain "github.com/brewcoin/api/internal/domain"
	"github.com/brewcoin/api/internal/platform/pagination"
)

// RepositoryError lets services translate backend failures without importing
// driver specific error types.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderListPage carries one page of orders plus the cursor for the next page.
type OrderListPage struct {
	Orders        []domain.Order
	NextPageToken string
}

// OrderRepository persists order records. Orders are append-only; only status
// and settlement markers mutate after creation.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) (domain.Order, error)
	Get(ctx context.Context, orderID string) (domain.Order, error)
	ListByClient(ctx context.Context, clientID string, params pagination.Params) (OrderListPage, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) (domain.Order, error)
	MarkSettlement(ctx context.Context, orderID string, settlement domain.OrderSettlement, updatedAt time.Time) error
}

// ClientRepository reads and updates loyalty account state.
type ClientRepository interface {
	Get(ctx context.Context, clientID string) (domain.Client, error)
	// ApplyLoyalty runs apply against the current client record inside a
	// transaction and persists the result.
	ApplyLoyalty(ctx context.Context, clientID string, apply func(domain.Client) domain.Client) (domain.Client, error)
}

// ProductRepository exposes the canonical catalog used for authoritative re-pricing.
type ProductRepository interface {
	GetMany(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
}

// DecrementResult reports the effect of a clamped inventory decrement.
type DecrementResult struct {
	Found  bool
	Before int64
	After  int64
}

// InventoryRepository manages per-(product, location) stock rows.
type InventoryRepository interface {
	Get(ctx context.Context, productID, locationID string) (domain.InventoryRecord, error)
	ListByLocation(ctx context.Context, locationID string) ([]domain.InventoryRecord, error)
	Put(ctx context.Context, record domain.InventoryRecord) (domain.InventoryRecord, error)
	// DecrementClamped atomically applies quantity = max(0, quantity - qty).
	// A missing row is reported via Found=false, never as an error.
	DecrementClamped(ctx context.Context, productID, locationID string, qty int64) (DecrementResult, error)
}

// SubscriptionRepository stores restock notification requests.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub domain.StockSubscription) (domain.StockSubscription, error)
	ListPending(ctx context.Context, limit int) ([]domain.StockSubscription, error)
	MarkNotified(ctx context.Context, subscriptionID string, at time.Time) error
}

// CounterRepository issues monotonically increasing values, used for order numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}

// HealthRepository aggregates dependency probes for readiness checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
