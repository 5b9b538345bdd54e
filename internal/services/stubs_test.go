package services

import (
	"context"
	"time"

	domain "github.com/brewcoin/api/internal/domain"
	"github.com/brewcoin/api/internal/platform/pagination"
	"github.com/brewcoin/api/internal/repositories"
)

// stubRepoError implements repositories.RepositoryError for backend failure cases.
type stubRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *stubRepoError) Error() string       { return e.msg }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return e.unavailable }

func notFoundErr(msg string) error    { return &stubRepoError{msg: msg, notFound: true} }
func conflictErr(msg string) error    { return &stubRepoError{msg: msg, conflict: true} }
func unavailableErr(msg string) error { return &stubRepoError{msg: msg, unavailable: true} }

type stubOrderRepository struct {
	createFunc         func(ctx context.Context, order domain.Order) (domain.Order, error)
	getFunc            func(ctx context.Context, orderID string) (domain.Order, error)
	listByClientFunc   func(ctx context.Context, clientID string, params pagination.Params) (repositories.OrderListPage, error)
	updateStatusFunc   func(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) (domain.Order, error)
	markSettlementFunc func(ctx context.Context, orderID string, settlement domain.OrderSettlement, updatedAt time.Time) error
}

func (s *stubOrderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	if s.createFunc == nil {
		return order, nil
	}
	return s.createFunc(ctx, order)
}

func (s *stubOrderRepository) Get(ctx context.Context, orderID string) (domain.Order, error) {
	if s.getFunc == nil {
		return domain.Order{}, notFoundErr("order not found")
	}
	return s.getFunc(ctx, orderID)
}

func (s *stubOrderRepository) ListByClient(ctx context.Context, clientID string, params pagination.Params) (repositories.OrderListPage, error) {
	if s.listByClientFunc == nil {
		return repositories.OrderListPage{}, nil
	}
	return s.listByClientFunc(ctx, clientID, params)
}

func (s *stubOrderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, updatedAt time.Time) (domain.Order, error) {
	if s.updateStatusFunc == nil {
		return domain.Order{ID: orderID, Status: status, UpdatedAt: updatedAt}, nil
	}
	return s.updateStatusFunc(ctx, orderID, status, updatedAt)
}

func (s *stubOrderRepository) MarkSettlement(ctx context.Context, orderID string, settlement domain.OrderSettlement, updatedAt time.Time) error {
	if s.markSettlementFunc == nil {
		return nil
	}
	return s.markSettlementFunc(ctx, orderID, settlement, updatedAt)
}

type stubClientRepository struct {
	getFunc          func(ctx context.Context, clientID string) (domain.Client, error)
	applyLoyaltyFunc func(ctx context.Context, clientID string, apply func(domain.Client) domain.Client) (domain.Client, error)
}

func (s *stubClientRepository) Get(ctx context.Context, clientID string) (domain.Client, error) {
	if s.getFunc == nil {
		return domain.Client{}, notFoundErr("client not found")
	}
	return s.getFunc(ctx, clientID)
}

func (s *stubClientRepository) ApplyLoyalty(ctx context.Context, clientID string, apply func(domain.Client) domain.Client) (domain.Client, error) {
	if s.applyLoyaltyFunc == nil {
		return apply(domain.Client{ID: clientID}), nil
	}
	return s.applyLoyaltyFunc(ctx, clientID, apply)
}

type stubProductRepository struct {
	getManyFunc func(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
}

func (s *stubProductRepository) GetMany(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	if s.getManyFunc == nil {
		return map[string]domain.Product{}, nil
	}
	return s.getManyFunc(ctx, productIDs)
}

type stubInventoryRepository struct {
	getFunc            func(ctx context.Context, productID, locationID string) (domain.InventoryRecord, error)
	listByLocationFunc func(ctx context.Context, locationID string) ([]domain.InventoryRecord, error)
	putFunc            func(ctx context.Context, record domain.InventoryRecord) (domain.InventoryRecord, error)
	decrementFunc      func(ctx context.Context, productID, locationID string, qty int64) (repositories.DecrementResult, error)
}

func (s *stubInventoryRepository) Get(ctx context.Context, productID, locationID string) (domain.InventoryRecord, error) {
	if s.getFunc == nil {
		return domain.InventoryRecord{}, notFoundErr("stock not found")
	}
	return s.getFunc(ctx, productID, locationID)
}

func (s *stubInventoryRepository) ListByLocation(ctx context.Context, locationID string) ([]domain.InventoryRecord, error) {
	if s.listByLocationFunc == nil {
		return nil, nil
	}
	return s.listByLocationFunc(ctx, locationID)
}

func (s *stubInventoryRepository) Put(ctx context.Context, record domain.InventoryRecord) (domain.InventoryRecord, error) {
	if s.putFunc == nil {
		return record, nil
	}
	return s.putFunc(ctx, record)
}

func (s *stubInventoryRepository) DecrementClamped(ctx context.Context, productID, locationID string, qty int64) (repositories.DecrementResult, error) {
	if s.decrementFunc == nil {
		return repositories.DecrementResult{Found: true, Before: qty, After: 0}, nil
	}
	return s.decrementFunc(ctx, productID, locationID, qty)
}

type stubSubscriptionRepository struct {
	createFunc       func(ctx context.Context, sub domain.StockSubscription) (domain.StockSubscription, error)
	listPendingFunc  func(ctx context.Context, limit int) ([]domain.StockSubscription, error)
	markNotifiedFunc func(ctx context.Context, subscriptionID string, at time.Time) error
}

func (s *stubSubscriptionRepository) Create(ctx context.Context, sub domain.StockSubscription) (domain.StockSubscription, error) {
	if s.createFunc == nil {
		return sub, nil
	}
	return s.createFunc(ctx, sub)
}

func (s *stubSubscriptionRepository) ListPending(ctx context.Context, limit int) ([]domain.StockSubscription, error) {
	if s.listPendingFunc == nil {
		return nil, nil
	}
	return s.listPendingFunc(ctx, limit)
}

func (s *stubSubscriptionRepository) MarkNotified(ctx context.Context, subscriptionID string, at time.Time) error {
	if s.markNotifiedFunc == nil {
		return nil
	}
	return s.markNotifiedFunc(ctx, subscriptionID, at)
}

type stubCounterRepository struct {
	nextFunc func(ctx context.Context, counterID string, step int64) (int64, error)
}

func (s *stubCounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if s.nextFunc == nil {
		return 1, nil
	}
	return s.nextFunc(ctx, counterID, step)
}

type stubSettlementService struct {
	settleFunc func(ctx context.Context, orderID string) (SettlementResult, error)
}

func (s *stubSettlementService) Settle(ctx context.Context, orderID string) (SettlementResult, error) {
	if s.settleFunc == nil {
		return SettlementResult{OrderID: orderID, InventoryApplied: true, LoyaltyApplied: true, Settled: true}, nil
	}
	return s.settleFunc(ctx, orderID)
}

type stubJobPublisher struct {
	publishFunc func(ctx context.Context, msg SettlementJobMessage) error
}

func (s *stubJobPublisher) PublishSettlementJob(ctx context.Context, msg SettlementJobMessage) error {
	if s.publishFunc == nil {
		return nil
	}
	return s.publishFunc(ctx, msg)
}

type stubCheckoutNotifier struct {
	orderCreatedFunc func(ctx context.Context, order Order)
}

func (s *stubCheckoutNotifier) OrderCreated(ctx context.Context, order Order) {
	if s.orderCreatedFunc != nil {
		s.orderCreatedFunc(ctx, order)
	}
}

type stubStockAlertNotifier struct {
	stockAvailableFunc func(ctx context.Context, sub domain.StockSubscription, quantity int64) error
}

func (s *stubStockAlertNotifier) StockAvailable(ctx context.Context, sub domain.StockSubscription, quantity int64) error {
	if s.stockAvailableFunc == nil {
		return nil
	}
	return s.stockAvailableFunc(ctx, sub, quantity)
}
