package domain

import (
	"strings"
	"time"
)

// PaymentMethod selects which price list applies to an order or cart line.
type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "cash"
	PaymentCard  PaymentMethod = "card"
	PaymentMixed PaymentMethod = "mixed"
)

// ParsePaymentMethod normalises the wire value into a known payment method.
func ParsePaymentMethod(value string) (PaymentMethod, bool) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(value))) {
	case PaymentCash:
		return PaymentCash, true
	case PaymentCard:
		return PaymentCard, true
	case PaymentMixed:
		return PaymentMixed, true
	default:
		return "", false
	}
}

// OrderStatus tracks an order through its fulfilment lifecycle.
type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusPreorder   OrderStatus = "preorder"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusDeleted    OrderStatus = "deleted"
)

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusNew:        {OrderStatusProcessing, OrderStatusDeleted},
	OrderStatusPreorder:   {OrderStatusProcessing, OrderStatusDeleted},
	OrderStatusProcessing: {OrderStatusReady, OrderStatusDeleted},
	OrderStatusReady:      {OrderStatusCompleted},
	OrderStatusCompleted:  nil,
	OrderStatusDeleted:    nil,
}

// CanTransition reports whether an order may move from its current status to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderStatusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further status changes are allowed.
func (s OrderStatus) IsTerminal() bool {
	return len(orderStatusTransitions[s]) == 0
}

// Client carries the loyalty account state alongside basic identity fields.
type Client struct {
	ID                  string
	Name                string
	Phone               string
	CoinBalance         int64
	LifetimeSpend       int64
	OrderCount          int64
	DiscountTierPercent int
	LastActivityAt      time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// LoyaltySnapshot is the client-facing view of a loyalty account returned after checkout.
type LoyaltySnapshot struct {
	ClientID            string
	CoinBalance         int64
	LifetimeSpend       int64
	OrderCount          int64
	DiscountTierPercent int
}

// Snapshot derives the loyalty view from the full client record.
func (c Client) Snapshot() LoyaltySnapshot {
	return LoyaltySnapshot{
		ClientID:            c.ID,
		CoinBalance:         c.CoinBalance,
		LifetimeSpend:       c.LifetimeSpend,
		OrderCount:          c.OrderCount,
		DiscountTierPercent: c.DiscountTierPercent,
	}
}

// Product is a canonical catalog entry holding the two authoritative price lists.
type Product struct {
	ID        string
	Name      string
	PriceCash int64
	PriceCard int64
	Active    bool
	UpdatedAt time.Time
}

// InventoryRecord holds on-hand quantity for a product at one pickup location.
type InventoryRecord struct {
	ProductID  string
	LocationID string
	Quantity   int64
	UpdatedAt  time.Time
}

// OrderLine is a frozen copy of a cart line captured at submission time.
type OrderLine struct {
	ProductID       string
	Name            string
	Quantity        int64
	UnitPriceCash   int64
	UnitPriceCard   int64
	PaymentOverride PaymentMethod
	UnitPrice       int64
	LineTotal       int64
}

// OrderTotals captures every component of the final charge.
type OrderTotals struct {
	Subtotal         int64
	VolumeDiscount   int64
	LoyaltyDiscount  int64
	CashSavings      int64
	CoinsRedeemed    int64
	CoinsEarned      int64
	Total            int64
	FreeUnitEligible bool
}

// OrderSettlement marks which best-effort bookkeeping steps have been applied.
// InventoryLines lists the product ids whose stock decrement already ran, so a
// retry after a partial inventory failure never decrements the same line twice.
type OrderSettlement struct {
	InventoryApplied bool
	LoyaltyApplied   bool
	InventoryLines   []string
	NotifiedAt       time.Time
}

// LineApplied reports whether the product's stock decrement already ran.
func (s OrderSettlement) LineApplied(productID string) bool {
	for _, applied := range s.InventoryLines {
		if applied == productID {
			return true
		}
	}
	return false
}

// Settled reports whether both bookkeeping steps have completed.
func (s OrderSettlement) Settled() bool {
	return s.InventoryApplied && s.LoyaltyApplied
}

// Order is the persisted record of a completed checkout. Lines never re-price.
type Order struct {
	ID            string
	Number        int64
	ClientID      string
	LocationID    string
	PaymentMethod PaymentMethod
	Status        OrderStatus
	Lines         []OrderLine
	Totals        OrderTotals
	Comment       string
	Settlement    OrderSettlement
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TotalQuantity sums the units across all lines.
func (o Order) TotalQuantity() int64 {
	var total int64
	for _, line := range o.Lines {
		total += line.Quantity
	}
	return total
}

// StockSubscription asks for a ping when an out-of-stock product returns at a location.
type StockSubscription struct {
	ID         string
	ClientID   string
	ProductID  string
	LocationID string
	ChatID     string
	CreatedAt  time.Time
	NotifiedAt time.Time
}

// Pending reports whether the subscriber still awaits a restock notice.
func (s StockSubscription) Pending() bool {
	return s.NotifiedAt.IsZero()
}
