package services

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/brewcoin/api/internal/domain"
	"github.com/brewcoin/api/internal/repositories"
)

var (
	// ErrSettlementInvalidInput indicates a missing or malformed order ID.
	ErrSettlementInvalidInput = errors.New("settlement: invalid input")
	// ErrSettlementNotFound indicates the order does not exist.
	ErrSettlementNotFound = errors.New("settlement: order not found")
	// ErrSettlementUnavailable indicates settlement dependencies are currently unavailable.
	ErrSettlementUnavailable = errors.New("settlement: unavailable")
)

// SettlementServiceDeps wires the dependencies required by the settlement service.
type SettlementServiceDeps struct {
	Orders    repositories.OrderRepository
	Clients   repositories.ClientRepository
	Inventory repositories.InventoryRepository
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type settlementService struct {
	orders    repositories.OrderRepository
	clients   repositories.ClientRepository
	inventory repositories.InventoryRepository
	now       func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewSettlementService constructs a SettlementService validating required dependencies.
func NewSettlementService(deps SettlementServiceDeps) (SettlementService, error) {
	if deps.Orders == nil {
		return nil, errors.New("settlement service: order repository is required")
	}
	if deps.Clients == nil {
		return nil, errors.New("settlement service: client repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("settlement service: inventory repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &settlementService{
		orders:    deps.Orders,
		clients:   deps.Clients,
		inventory: deps.Inventory,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Settle applies inventory and loyalty bookkeeping for the order. Each step
// records a marker on the order once applied, so retries resume where the
// previous attempt stopped instead of applying a step twice.
func (s *settlementService) Settle(ctx context.Context, orderID string) (SettlementResult, error) {
	if s == nil || s.orders == nil {
		return SettlementResult{}, ErrSettlementUnavailable
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return SettlementResult{}, ErrSettlementInvalidInput
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return SettlementResult{}, s.translateError(err)
	}

	settlement := order.Settlement
	if settlement.Settled() {
		return resultFrom(order.ID, settlement), nil
	}

	changed := false
	if !settlement.InventoryApplied {
		linesBefore := len(settlement.InventoryLines)
		if s.applyInventory(ctx, order, &settlement) {
			settlement.InventoryApplied = true
			changed = true
		} else if len(settlement.InventoryLines) != linesBefore {
			changed = true
		}
	}
	if !settlement.LoyaltyApplied {
		if s.applyLoyalty(ctx, order) {
			settlement.LoyaltyApplied = true
			changed = true
		}
	}

	if changed {
		if err := s.orders.MarkSettlement(ctx, order.ID, settlement, s.now()); err != nil {
			s.logger(ctx, "settlement_mark_failed", map[string]any{
				"orderId": order.ID,
				"error":   err.Error(),
			})
			return resultFrom(order.ID, settlement), ErrSettlementUnavailable
		}
	}
	return resultFrom(order.ID, settlement), nil
}

// applyInventory decrements on-hand stock for every line, clamping at zero.
// Missing stock rows are skipped; only backend failures leave the step
// unapplied. Every decremented line is recorded on the settlement so a retry
// after a mid-step failure resumes with the remaining lines only. Orders
// without a pickup location carry no stock to decrement.
func (s *settlementService) applyInventory(ctx context.Context, order Order, settlement *domain.OrderSettlement) bool {
	if strings.TrimSpace(order.LocationID) == "" {
		return true
	}

	for _, line := range order.Lines {
		if settlement.LineApplied(line.ProductID) {
			continue
		}
		result, err := s.inventory.DecrementClamped(ctx, line.ProductID, order.LocationID, line.Quantity)
		if err != nil {
			s.logger(ctx, "settlement_inventory_failed", map[string]any{
				"orderId":   order.ID,
				"productId": line.ProductID,
				"error":     err.Error(),
			})
			return false
		}
		settlement.InventoryLines = append(settlement.InventoryLines, line.ProductID)
		if !result.Found {
			s.logger(ctx, "settlement_stock_missing", map[string]any{
				"orderId":    order.ID,
				"productId":  line.ProductID,
				"locationId": order.LocationID,
			})
			continue
		}
		if result.After == 0 && result.Before < line.Quantity {
			s.logger(ctx, "settlement_stock_clamped", map[string]any{
				"orderId":   order.ID,
				"productId": line.ProductID,
				"requested": line.Quantity,
				"available": result.Before,
			})
		}
	}
	return true
}

// applyLoyalty deducts redeemed coins, credits cashback, and recomputes the
// discount tier from cumulative spend. Guest orders have nothing to apply.
func (s *settlementService) applyLoyalty(ctx context.Context, order Order) bool {
	if strings.TrimSpace(order.ClientID) == "" {
		return true
	}

	now := s.now()
	_, err := s.clients.ApplyLoyalty(ctx, order.ClientID, func(client domain.Client) domain.Client {
		client.CoinBalance -= order.Totals.CoinsRedeemed
		if client.CoinBalance < 0 {
			client.CoinBalance = 0
		}
		client.CoinBalance += order.Totals.CoinsEarned
		client.LifetimeSpend += order.Totals.Total
		client.OrderCount++
		client.DiscountTierPercent = domain.TierForSpend(client.LifetimeSpend)
		client.LastActivityAt = now
		client.UpdatedAt = now
		return client
	})
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			s.logger(ctx, "settlement_client_missing", map[string]any{
				"orderId":  order.ID,
				"clientId": order.ClientID,
			})
			return true
		}
		s.logger(ctx, "settlement_loyalty_failed", map[string]any{
			"orderId":  order.ID,
			"clientId": order.ClientID,
			"error":    err.Error(),
		})
		return false
	}
	return true
}

func (s *settlementService) translateError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return ErrSettlementNotFound
	}
	return ErrSettlementUnavailable
}

func resultFrom(orderID string, settlement domain.OrderSettlement) SettlementResult {
	return SettlementResult{
		OrderID:          orderID,
		InventoryApplied: settlement.InventoryApplied,
		LoyaltyApplied:   settlement.LoyaltyApplied,
		Settled:          settlement.Settled(),
	}
}
