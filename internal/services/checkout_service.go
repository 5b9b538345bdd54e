package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/brewcoin/api/internal/domain"
	"github.com/brewcoin/api/internal/repositories"
)

// commentSanitizer strips markup from order comments before they are persisted
// or rendered into notifications.
var commentSanitizer = bluemonday.StrictPolicy()

const (
	orderIDPrefix      = "ord_"
	orderNumberCounter = "orders"

	settlementRetryReasonInline  = "inline_settlement_incomplete"
	settlementRetryReasonFailure = "inline_settlement_failed"
)

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid cart data.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutUnknownProduct indicates a cart line references a missing or inactive product.
	ErrCheckoutUnknownProduct = errors.New("checkout: unknown product")
	// ErrCheckoutPriceMismatch indicates the client-side total disagrees with the authoritative price.
	ErrCheckoutPriceMismatch = errors.New("checkout: price mismatch")
	// ErrCheckoutConflict indicates a concurrent modification prevented completing checkout.
	ErrCheckoutConflict = errors.New("checkout: conflict")
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
)

// CheckoutNotifier receives fire-and-forget order notifications.
type CheckoutNotifier interface {
	OrderCreated(ctx context.Context, order Order)
}

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Orders      repositories.OrderRepository
	Clients     repositories.ClientRepository
	Products    repositories.ProductRepository
	Counters    repositories.CounterRepository
	Pricing     PricingEngine
	Settlement  SettlementService
	Jobs        SettlementJobPublisher
	Notifier    CheckoutNotifier
	IDGenerator func() string
	Clock       func() time.Time
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	orders     repositories.OrderRepository
	clients    repositories.ClientRepository
	products   repositories.ProductRepository
	counters   repositories.CounterRepository
	pricing    PricingEngine
	settlement SettlementService
	jobs       SettlementJobPublisher
	notifier   CheckoutNotifier
	newID      func() string
	now        func() time.Time
	logger     func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Clients == nil {
		return nil, errors.New("checkout service: client repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("checkout service: product repository is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("checkout service: pricing engine is required")
	}
	if deps.Settlement == nil {
		return nil, errors.New("checkout service: settlement service is required")
	}

	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string {
			return orderIDPrefix + ulid.Make().String()
		}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		orders:     deps.Orders,
		clients:    deps.Clients,
		products:   deps.Products,
		counters:   deps.Counters,
		pricing:    deps.Pricing,
		settlement: deps.Settlement,
		jobs:       deps.Jobs,
		notifier:   deps.Notifier,
		newID:      newID,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Checkout re-prices the submitted cart against the catalog, persists the
// order, and applies settlement bookkeeping. Only the persist step is fatal;
// settlement failures leave the order queued for retry.
func (s *checkoutService) Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error) {
	if s == nil || s.orders == nil {
		return CheckoutResult{}, ErrCheckoutUnavailable
	}

	cmd, method, err := normaliseCheckoutCommand(cmd)
	if err != nil {
		return CheckoutResult{}, err
	}

	cart, err := s.buildCart(ctx, cmd, method)
	if err != nil {
		return CheckoutResult{}, err
	}

	client, hasClient, err := s.loadClient(ctx, cmd.ClientID)
	if err != nil {
		return CheckoutResult{}, err
	}

	input := PricingInput{Cart: cart}
	if hasClient {
		input.CoinBalance = client.CoinBalance
		input.TierPercent = client.DiscountTierPercent
	}
	breakdown, err := s.pricing.Price(ctx, input)
	if err != nil {
		if errors.Is(err, ErrPricingInvalidInput) {
			return CheckoutResult{}, ErrCheckoutInvalidInput
		}
		return CheckoutResult{}, ErrCheckoutUnavailable
	}
	if breakdown.Empty {
		return CheckoutResult{}, ErrCheckoutInvalidInput
	}

	if breakdown.Total != cmd.ExpectedTotal {
		return CheckoutResult{}, fmt.Errorf("%w: expected %d, authoritative total %d", ErrCheckoutPriceMismatch, cmd.ExpectedTotal, breakdown.Total)
	}

	order := s.buildOrder(ctx, cmd, cart, breakdown)
	order, err = s.orders.Create(ctx, order)
	if err != nil {
		return CheckoutResult{}, s.translateOrderError(err)
	}

	order = s.settleInline(ctx, order)

	if s.notifier != nil {
		notifyCtx := context.WithoutCancel(ctx)
		go s.notifier.OrderCreated(notifyCtx, order)
	}

	result := CheckoutResult{Order: order, Pricing: breakdown}
	if hasClient {
		if refreshed, err := s.clients.Get(ctx, client.ID); err == nil {
			snapshot := refreshed.Snapshot()
			result.Loyalty = &snapshot
		} else {
			snapshot := client.Snapshot()
			result.Loyalty = &snapshot
		}
	}
	return result, nil
}

func (s *checkoutService) buildCart(ctx context.Context, cmd CheckoutCommand, method PaymentMethod) (Cart, error) {
	ids := make([]string, 0, len(cmd.Lines))
	for _, line := range cmd.Lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.products.GetMany(ctx, ids)
	if err != nil {
		s.logger(ctx, "checkout_catalog_failed", map[string]any{"error": err.Error()})
		return Cart{}, ErrCheckoutUnavailable
	}

	cart := Cart{
		PickupLocationID: cmd.LocationID,
		PaymentMethod:    method,
		CoinsToRedeem:    cmd.CoinsToRedeem,
		Comment:          cmd.Comment,
		Lines:            make([]CartLine, 0, len(cmd.Lines)),
	}
	for _, line := range cmd.Lines {
		product, ok := products[line.ProductID]
		if !ok || !product.Active {
			return Cart{}, fmt.Errorf("%w: %s", ErrCheckoutUnknownProduct, line.ProductID)
		}
		var override PaymentMethod
		if line.PaymentOverride != "" {
			parsed, ok := domain.ParsePaymentMethod(line.PaymentOverride)
			if !ok || parsed == domain.PaymentMixed {
				return Cart{}, ErrCheckoutInvalidInput
			}
			override = parsed
		}
		cart.Lines = append(cart.Lines, CartLine{
			ProductID:       product.ID,
			Name:            product.Name,
			Quantity:        line.Quantity,
			UnitPriceCash:   product.PriceCash,
			UnitPriceCard:   product.PriceCard,
			PaymentOverride: override,
		})
	}
	return cart, nil
}

func (s *checkoutService) loadClient(ctx context.Context, clientID string) (Client, bool, error) {
	if clientID == "" {
		return Client{}, false, nil
	}
	client, err := s.clients.Get(ctx, clientID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			// Unknown loyalty accounts check out as guests.
			return Client{}, false, nil
		}
		s.logger(ctx, "checkout_client_lookup_failed", map[string]any{
			"clientId": clientID,
			"error":    err.Error(),
		})
		return Client{}, false, ErrCheckoutUnavailable
	}
	return client, true, nil
}

func (s *checkoutService) buildOrder(ctx context.Context, cmd CheckoutCommand, cart Cart, breakdown PricingBreakdown) Order {
	now := s.now()

	var number int64
	if s.counters != nil {
		value, err := s.counters.Next(ctx, orderNumberCounter, 1)
		if err != nil {
			s.logger(ctx, "checkout_number_failed", map[string]any{"error": err.Error()})
		} else {
			number = value
		}
	}

	status := domain.OrderStatusNew
	if cmd.Preorder {
		status = domain.OrderStatusPreorder
	}

	normalized := cart.Normalize()
	lines := make([]domain.OrderLine, 0, len(normalized.Lines))
	for i, line := range normalized.Lines {
		priced := breakdown.Lines[i]
		lines = append(lines, domain.OrderLine{
			ProductID:       line.ProductID,
			Name:            line.Name,
			Quantity:        line.Quantity,
			UnitPriceCash:   line.UnitPriceCash,
			UnitPriceCard:   line.UnitPriceCard,
			PaymentOverride: line.PaymentOverride,
			UnitPrice:       priced.UnitPrice,
			LineTotal:       priced.LineTotal,
		})
	}

	return Order{
		ID:            s.newID(),
		Number:        number,
		ClientID:      cmd.ClientID,
		LocationID:    cmd.LocationID,
		PaymentMethod: cart.PaymentMethod,
		Status:        status,
		Lines:         lines,
		Totals:        breakdown.Totals(),
		Comment:       cmd.Comment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// settleInline applies bookkeeping immediately after persisting the order.
// Incomplete settlements are queued for retry on the message bus.
func (s *checkoutService) settleInline(ctx context.Context, order Order) Order {
	result, err := s.settlement.Settle(ctx, order.ID)
	if err != nil {
		s.logger(ctx, "checkout_settlement_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
		s.enqueueSettlementRetry(ctx, order.ID, settlementRetryReasonFailure)
		return order
	}

	order.Settlement.InventoryApplied = result.InventoryApplied
	order.Settlement.LoyaltyApplied = result.LoyaltyApplied
	if !result.Settled {
		s.enqueueSettlementRetry(ctx, order.ID, settlementRetryReasonInline)
	}
	return order
}

func (s *checkoutService) enqueueSettlementRetry(ctx context.Context, orderID, reason string) {
	if s.jobs == nil {
		return
	}
	err := s.jobs.PublishSettlementJob(ctx, SettlementJobMessage{
		OrderID:    orderID,
		Reason:     reason,
		EnqueuedAt: s.now(),
	})
	if err != nil {
		s.logger(ctx, "checkout_settlement_enqueue_failed", map[string]any{
			"orderId": orderID,
			"reason":  reason,
			"error":   err.Error(),
		})
	}
}

func (s *checkoutService) translateOrderError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsConflict():
			return ErrCheckoutConflict
		default:
			return ErrCheckoutUnavailable
		}
	}
	return ErrCheckoutUnavailable
}

// normaliseCheckoutCommand trims and validates the submitted cart. A client id
// is always required; unknown ids still price as guests downstream. The pickup
// location is optional, orders without one simply carry no stock to decrement.
func normaliseCheckoutCommand(cmd CheckoutCommand) (CheckoutCommand, PaymentMethod, error) {
	cmd.ClientID = strings.TrimSpace(cmd.ClientID)
	cmd.LocationID = strings.TrimSpace(cmd.LocationID)
	cmd.Comment = strings.TrimSpace(commentSanitizer.Sanitize(cmd.Comment))

	if cmd.ClientID == "" {
		return cmd, "", ErrCheckoutInvalidInput
	}
	method, ok := domain.ParsePaymentMethod(cmd.PaymentMethod)
	if !ok {
		return cmd, "", ErrCheckoutInvalidInput
	}
	if len(cmd.Lines) == 0 {
		return cmd, "", ErrCheckoutInvalidInput
	}
	for i := range cmd.Lines {
		cmd.Lines[i].ProductID = strings.TrimSpace(cmd.Lines[i].ProductID)
		if cmd.Lines[i].ProductID == "" || cmd.Lines[i].Quantity <= 0 {
			return cmd, "", ErrCheckoutInvalidInput
		}
	}
	if cmd.CoinsToRedeem < 0 {
		return cmd, "", ErrCheckoutInvalidInput
	}
	if cmd.ExpectedTotal < 0 {
		return cmd, "", ErrCheckoutInvalidInput
	}
	return cmd, method, nil
}
