package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/brewcoin/api/internal/domain"
	"github.com/brewcoin/api/internal/repositories"
)

func settlementOrder() domain.Order {
	return domain.Order{
		ID:         "ord_1",
		ClientID:   "client-1",
		LocationID: "loc-central",
		Lines: []domain.OrderLine{
			{ProductID: "espresso", Quantity: 2},
			{ProductID: "beans", Quantity: 1},
		},
		Totals: domain.OrderTotals{
			CoinsRedeemed: 40,
			CoinsEarned:   3,
			Total:         90,
		},
	}
}

func newSettlementService(t *testing.T, orders *stubOrderRepository, clients *stubClientRepository, inventory *stubInventoryRepository, now time.Time) SettlementService {
	t.Helper()
	service, err := NewSettlementService(SettlementServiceDeps{
		Orders:    orders,
		Clients:   clients,
		Inventory: inventory,
		Clock:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewSettlementService: %v", err)
	}
	return service
}

func TestSettleAppliesInventoryAndLoyalty(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	order := settlementOrder()

	var marked *domain.OrderSettlement
	orders := &stubOrderRepository{
		getFunc: func(_ context.Context, _ string) (domain.Order, error) {
			return order, nil
		},
		markSettlementFunc: func(_ context.Context, orderID string, settlement domain.OrderSettlement, updatedAt time.Time) error {
			if orderID != order.ID {
				t.Errorf("marked order %q, want %q", orderID, order.ID)
			}
			if !updatedAt.Equal(now) {
				t.Errorf("updatedAt = %v, want %v", updatedAt, now)
			}
			marked = &settlement
			return nil
		},
	}

	var applied domain.Client
	clients := &stubClientRepository{
		applyLoyaltyFunc: func(_ context.Context, clientID string, apply func(domain.Client) domain.Client) (domain.Client, error) {
			applied = apply(domain.Client{ID: clientID, CoinBalance: 100, LifetimeSpend: 23950, OrderCount: 4})
			return applied, nil
		},
	}

	var decrements []string
	inventory := &stubInventoryRepository{
		decrementFunc: func(_ context.Context, productID, locationID string, qty int64) (repositories.DecrementResult, error) {
			if locationID != "loc-central" {
				t.Errorf("decrement location %q", locationID)
			}
			decrements = append(decrements, productID)
			return repositories.DecrementResult{Found: true, Before: qty + 5, After: 5}, nil
		},
	}

	service := newSettlementService(t, orders, clients, inventory, now)
	result, err := service.Settle(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}

	if !result.Settled || !result.InventoryApplied || !result.LoyaltyApplied {
		t.Errorf("unexpected result %+v", result)
	}
	if len(decrements) != 2 {
		t.Errorf("expected 2 decrements, got %v", decrements)
	}
	if marked == nil || !marked.Settled() {
		t.Errorf("settlement markers not persisted: %+v", marked)
	}

	if applied.CoinBalance != 63 {
		t.Errorf("coin balance = %d, want 100-40+3=63", applied.CoinBalance)
	}
	if applied.LifetimeSpend != 24040 {
		t.Errorf("lifetime spend = %d, want 24040", applied.LifetimeSpend)
	}
	if applied.OrderCount != 5 {
		t.Errorf("order count = %d, want 5", applied.OrderCount)
	}
	if applied.DiscountTierPercent != domain.TierPercentBronze {
		t.Errorf("tier = %d, want bronze after crossing 24000", applied.DiscountTierPercent)
	}
	if !applied.LastActivityAt.Equal(now) {
		t.Errorf("last activity = %v, want %v", applied.LastActivityAt, now)
	}
}

func TestSettleLoyaltyBalanceClampedAtZero(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	order := settlementOrder()
	order.Totals.CoinsRedeemed = 500

	orders := &stubOrderRepository{
		getFunc: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
	}
	var applied domain.Client
	clients := &stubClientRepository{
		applyLoyaltyFunc: func(_ context.Context, clientID string, apply func(domain.Client) domain.Client) (domain.Client, error) {
			applied = apply(domain.Client{ID: clientID, CoinBalance: 10})
			return applied, nil
		},
	}

	service := newSettlementService(t, orders, clients, &stubInventoryRepository{}, now)
	if _, err := service.Settle(context.Background(), order.ID); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if applied.CoinBalance != 3 {
		t.Errorf("coin balance = %d, want clamp to 0 then +3 cashback", applied.CoinBalance)
	}
}

func TestSettleIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	order := settlementOrder()
	order.Settlement = domain.OrderSettlement{InventoryApplied: true, LoyaltyApplied: true}

	orders := &stubOrderRepository{
		getFunc: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
		markSettlementFunc: func(_ context.Context, _ string, _ domain.OrderSettlement, _ time.Time) error {
			t.Error("settled order must not be re-marked")
			return nil
		},
	}
	clients := &stubClientRepository{
		applyLoyaltyFunc: func(_ context.Context, _ string, _ func(domain.Client) domain.Client) (domain.Client, error) {
			t.Error("loyalty must not be re-applied")
			return domain.Client{}, nil
		},
	}
	inventory := &stubInventoryRepository{
		decrementFunc: func(_ context.Context, _, _ string, _ int64) (repositories.DecrementResult, error) {
			t.Error("inventory must not be re-applied")
			return repositories.DecrementResult{}, nil
		},
	}

	service := newSettlementService(t, orders, clients, inventory, now)
	result, err := service.Settle(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if !result.Settled {
		t.Errorf("expected settled result, got %+v", result)
	}
}

func TestSettleResumesFromPartialState(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	order := settlementOrder()
	order.Settlement = domain.OrderSettlement{InventoryApplied: true}

	orders := &stubOrderRepository{
		getFunc: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
	}
	loyaltyApplied := false
	clients := &stubClientRepository{
		applyLoyaltyFunc: func(_ context.Context, clientID string, apply func(domain.Client) domain.Client) (domain.Client, error) {
			loyaltyApplied = true
			return apply(domain.Client{ID: clientID}), nil
		},
	}
	inventory := &stubInventoryRepository{
		decrementFunc: func(_ context.Context, _, _ string, _ int64) (repositories.DecrementResult, error) {
			t.Error("applied inventory step must not run again")
			return repositories.DecrementResult{}, nil
		},
	}

	service := newSettlementService(t, orders, clients, inventory, now)
	result, err := service.Settle(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if !loyaltyApplied {
		t.Error("pending loyalty step did not run")
	}
	if !result.Settled {
		t.Errorf("expected settled result, got %+v", result)
	}
}

func TestSettleMissingStockRowsSkipped(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	order := settlementOrder()
	order.ClientID = ""

	orders := &stubOrderRepository{
		getFunc: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
	}
	inventory := &stubInventoryRepository{
		decrementFunc: func(_ context.Context, productID, _ string, qty int64) (repositories.DecrementResult, error) {
			if productID == "espresso" {
				return repositories.DecrementResult{Found: false}, nil
			}
			return repositories.DecrementResult{Found: true, Before: 1, After: 0}, nil
		},
	}

	service := newSettlementService(t, orders, &stubClientRepository{}, inventory, now)
	result, err := service.Settle(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if !result.InventoryApplied {
		t.Error("missing stock rows must not block the inventory step")
	}
	if !result.Settled {
		t.Errorf("guest order with applied inventory must settle, got %+v", result)
	}
}

func TestSettleInventoryErrorLeavesStepPending(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	order := settlementOrder()

	var marked *domain.OrderSettlement
	orders := &stubOrderRepository{
		getFunc: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
		markSettlementFunc: func(_ context.Context, _ string, settlement domain.OrderSettlement, _ time.Time) error {
			marked = &settlement
			return nil
		},
	}
	clients := &stubClientRepository{
		applyLoyaltyFunc: func(_ context.Context, clientID string, apply func(domain.Client) domain.Client) (domain.Client, error) {
			return apply(domain.Client{ID: clientID}), nil
		},
	}
	inventory := &stubInventoryRepository{
		decrementFunc: func(_ context.Context, _, _ string, _ int64) (repositories.DecrementResult, error) {
			return repositories.DecrementResult{}, unavailableErr("backend down")
		},
	}

	service := newSettlementService(t, orders, clients, inventory, now)
	result, err := service.Settle(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if result.InventoryApplied {
		t.Error("inventory step must stay pending after a backend failure")
	}
	if !result.LoyaltyApplied {
		t.Error("loyalty step should still apply")
	}
	if result.Settled {
		t.Error("partially applied order reported settled")
	}
	if marked == nil || marked.InventoryApplied || !marked.LoyaltyApplied {
		t.Errorf("persisted markers wrong: %+v", marked)
	}
}

func TestSettleInventoryRetrySkipsDecrementedLines(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	order := settlementOrder()
	order.ClientID = ""

	var marked *domain.OrderSettlement
	orders := &stubOrderRepository{
		getFunc: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
		markSettlementFunc: func(_ context.Context, _ string, settlement domain.OrderSettlement, _ time.Time) error {
			marked = &settlement
			return nil
		},
	}

	decrements := map[string]int{}
	failBeans := true
	inventory := &stubInventoryRepository{
		decrementFunc: func(_ context.Context, productID, _ string, qty int64) (repositories.DecrementResult, error) {
			if productID == "beans" && failBeans {
				return repositories.DecrementResult{}, unavailableErr("backend down")
			}
			decrements[productID]++
			return repositories.DecrementResult{Found: true, Before: qty + 5, After: 5}, nil
		},
	}

	service := newSettlementService(t, orders, &stubClientRepository{}, inventory, now)

	result, err := service.Settle(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if result.InventoryApplied {
		t.Error("inventory step must stay pending after the second line failed")
	}
	if marked == nil || !marked.LineApplied("espresso") {
		t.Fatalf("first line's marker not persisted: %+v", marked)
	}

	// The retry sees the persisted markers and finishes the remaining line only.
	order.Settlement = *marked
	failBeans = false
	marked = nil

	result, err = service.Settle(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Settle retry: %v", err)
	}
	if !result.InventoryApplied || !result.Settled {
		t.Errorf("retry did not complete settlement: %+v", result)
	}
	if decrements["espresso"] != 1 {
		t.Errorf("espresso decremented %d times, want exactly once", decrements["espresso"])
	}
	if decrements["beans"] != 1 {
		t.Errorf("beans decremented %d times, want exactly once", decrements["beans"])
	}
	if marked == nil || !marked.InventoryApplied {
		t.Errorf("final markers not persisted: %+v", marked)
	}
}

func TestSettleOrderWithoutLocationSkipsInventory(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	order := settlementOrder()
	order.ClientID = ""
	order.LocationID = ""

	orders := &stubOrderRepository{
		getFunc: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
	}
	inventory := &stubInventoryRepository{
		decrementFunc: func(_ context.Context, productID, _ string, _ int64) (repositories.DecrementResult, error) {
			t.Errorf("order without a pickup location decremented %q", productID)
			return repositories.DecrementResult{}, nil
		},
	}

	service := newSettlementService(t, orders, &stubClientRepository{}, inventory, now)
	result, err := service.Settle(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if !result.InventoryApplied || !result.Settled {
		t.Errorf("location-less order must settle without stock writes: %+v", result)
	}
}

func TestSettleMissingClientCountsAsApplied(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	order := settlementOrder()

	orders := &stubOrderRepository{
		getFunc: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
	}
	clients := &stubClientRepository{
		applyLoyaltyFunc: func(_ context.Context, _ string, _ func(domain.Client) domain.Client) (domain.Client, error) {
			return domain.Client{}, notFoundErr("client gone")
		},
	}

	service := newSettlementService(t, orders, clients, &stubInventoryRepository{}, now)
	result, err := service.Settle(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if !result.LoyaltyApplied || !result.Settled {
		t.Errorf("missing client must not keep the order unsettled: %+v", result)
	}
}

func TestSettleMarkFailureReturnsUnavailable(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	order := settlementOrder()
	order.ClientID = ""

	orders := &stubOrderRepository{
		getFunc: func(_ context.Context, _ string) (domain.Order, error) { return order, nil },
		markSettlementFunc: func(_ context.Context, _ string, _ domain.OrderSettlement, _ time.Time) error {
			return unavailableErr("write failed")
		},
	}

	service := newSettlementService(t, orders, &stubClientRepository{}, &stubInventoryRepository{}, now)
	result, err := service.Settle(context.Background(), order.ID)
	if !errors.Is(err, ErrSettlementUnavailable) {
		t.Fatalf("expected ErrSettlementUnavailable, got %v", err)
	}
	if !result.InventoryApplied || !result.LoyaltyApplied {
		t.Errorf("result should report the applied steps even when marking fails: %+v", result)
	}
}

func TestSettleInputErrors(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	orders := &stubOrderRepository{
		getFunc: func(_ context.Context, _ string) (domain.Order, error) {
			return domain.Order{}, notFoundErr("no such order")
		},
	}
	service := newSettlementService(t, orders, &stubClientRepository{}, &stubInventoryRepository{}, now)

	if _, err := service.Settle(context.Background(), "  "); !errors.Is(err, ErrSettlementInvalidInput) {
		t.Errorf("expected ErrSettlementInvalidInput, got %v", err)
	}
	if _, err := service.Settle(context.Background(), "ord_missing"); !errors.Is(err, ErrSettlementNotFound) {
		t.Errorf("expected ErrSettlementNotFound, got %v", err)
	}
}
