package services

import (
	"context"
	"time"

	domain "github.com/brewcoin/api/internal/domain"
	"github.com/brewcoin/api/internal/platform/pagination"
)

// Domain aliases keep service signatures terse.
type (
	Cart             = domain.Cart
	CartLine         = domain.CartLine
	Client           = domain.Client
	InventoryRecord  = domain.InventoryRecord
	LoyaltySnapshot  = domain.LoyaltySnapshot
	Order            = domain.Order
	OrderStatus      = domain.OrderStatus
	PaymentMethod    = domain.PaymentMethod
	PricingBreakdown = domain.PricingBreakdown
	PricingInput     = domain.PricingInput
	Product          = domain.Product
)

// PricingEngine computes the authoritative charge for a cart snapshot.
type PricingEngine interface {
	Price(ctx context.Context, input PricingInput) (PricingBreakdown, error)
}

// CheckoutService turns a submitted cart into a persisted order.
type CheckoutService interface {
	Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error)
}

// SettlementService applies post-order bookkeeping. Safe to call repeatedly
// for the same order; completed steps are never applied twice, and within the
// inventory step each line's decrement runs at most once across retries.
type SettlementService interface {
	Settle(ctx context.Context, orderID string) (SettlementResult, error)
}

// OrderService serves order reads and lifecycle transitions.
type OrderService interface {
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrders(ctx context.Context, clientID string, params pagination.Params) (OrderPage, error)
	DeleteOrder(ctx context.Context, orderID string) error
	TransitionStatus(ctx context.Context, cmd OrderStatusCommand) (Order, error)
}

// ClientService exposes loyalty account reads.
type ClientService interface {
	GetLoyalty(ctx context.Context, clientID string) (LoyaltySnapshot, error)
}

// InventoryService manages stock rows for staff tooling.
type InventoryService interface {
	GetStock(ctx context.Context, productID, locationID string) (InventoryRecord, error)
	ListStock(ctx context.Context, locationID string) ([]InventoryRecord, error)
	SetStock(ctx context.Context, cmd SetStockCommand) (InventoryRecord, error)
}

// StockAlertService notifies waiting subscribers when products return to stock.
type StockAlertService interface {
	Sweep(ctx context.Context, batchSize int) (StockSweepResult, error)
}

// SettlementJobMessage is the Pub/Sub payload queued when inline settlement
// leaves an order partially applied.
type SettlementJobMessage struct {
	OrderID    string    `json:"orderId"`
	Reason     string    `json:"reason,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// SettlementJobPublisher queues settlement retries onto the message bus.
type SettlementJobPublisher interface {
	PublishSettlementJob(ctx context.Context, msg SettlementJobMessage) error
}

// CheckoutCommand is the submitted cart plus the client's expected charge.
type CheckoutCommand struct {
	ClientID      string
	LocationID    string
	PaymentMethod string
	Lines         []CheckoutLine
	CoinsToRedeem int64
	Comment       string
	ExpectedTotal int64
	Preorder      bool
}

// CheckoutLine references a catalog product; prices come from the catalog,
// never from the caller.
type CheckoutLine struct {
	ProductID       string
	Quantity        int64
	PaymentOverride string
}

// CheckoutResult is the response payload for a completed checkout.
type CheckoutResult struct {
	Order   Order
	Pricing PricingBreakdown
	Loyalty *LoyaltySnapshot
}

// SettlementResult reports which bookkeeping steps have been applied so far.
type SettlementResult struct {
	OrderID          string
	InventoryApplied bool
	LoyaltyApplied   bool
	Settled          bool
}

// OrderPage is one page of a client's order history.
type OrderPage struct {
	Orders        []Order
	NextPageToken string
}

// OrderStatusCommand moves an order along its fulfilment lifecycle.
type OrderStatusCommand struct {
	OrderID string
	Status  string
}

// SetStockCommand upserts the on-hand quantity for a product at a location.
type SetStockCommand struct {
	ProductID  string
	LocationID string
	Quantity   int64
}

// StockSweepResult summarises one restock notification sweep.
type StockSweepResult struct {
	Scanned  int
	Notified int
	Skipped  int
}
