package handlers

import (
	"context"

	domain "github.com/brewcoin/api/internal/domain"
	"github.com/brewcoin/api/internal/platform/pagination"
	"github.com/brewcoin/api/internal/services"
)

type stubCheckoutService struct {
	checkoutFunc func(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error)
}

func (s *stubCheckoutService) Checkout(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
	return s.checkoutFunc(ctx, cmd)
}

type stubOrderService struct {
	getFunc        func(ctx context.Context, orderID string) (services.Order, error)
	listFunc       func(ctx context.Context, clientID string, params pagination.Params) (services.OrderPage, error)
	deleteFunc     func(ctx context.Context, orderID string) error
	transitionFunc func(ctx context.Context, cmd services.OrderStatusCommand) (services.Order, error)
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	return s.getFunc(ctx, orderID)
}

func (s *stubOrderService) ListOrders(ctx context.Context, clientID string, params pagination.Params) (services.OrderPage, error) {
	return s.listFunc(ctx, clientID, params)
}

func (s *stubOrderService) DeleteOrder(ctx context.Context, orderID string) error {
	return s.deleteFunc(ctx, orderID)
}

func (s *stubOrderService) TransitionStatus(ctx context.Context, cmd services.OrderStatusCommand) (services.Order, error) {
	return s.transitionFunc(ctx, cmd)
}

type stubClientService struct {
	loyaltyFunc func(ctx context.Context, clientID string) (services.LoyaltySnapshot, error)
}

func (s *stubClientService) GetLoyalty(ctx context.Context, clientID string) (services.LoyaltySnapshot, error) {
	return s.loyaltyFunc(ctx, clientID)
}

type stubInventoryService struct {
	getFunc  func(ctx context.Context, productID, locationID string) (services.InventoryRecord, error)
	listFunc func(ctx context.Context, locationID string) ([]services.InventoryRecord, error)
	setFunc  func(ctx context.Context, cmd services.SetStockCommand) (services.InventoryRecord, error)
}

func (s *stubInventoryService) GetStock(ctx context.Context, productID, locationID string) (services.InventoryRecord, error) {
	return s.getFunc(ctx, productID, locationID)
}

func (s *stubInventoryService) ListStock(ctx context.Context, locationID string) ([]services.InventoryRecord, error) {
	return s.listFunc(ctx, locationID)
}

func (s *stubInventoryService) SetStock(ctx context.Context, cmd services.SetStockCommand) (services.InventoryRecord, error) {
	return s.setFunc(ctx, cmd)
}

type stubSettlementService struct {
	settleFunc func(ctx context.Context, orderID string) (services.SettlementResult, error)
}

func (s *stubSettlementService) Settle(ctx context.Context, orderID string) (services.SettlementResult, error) {
	return s.settleFunc(ctx, orderID)
}

type stubStockAlertService struct {
	sweepFunc func(ctx context.Context, batchSize int) (services.StockSweepResult, error)
}

func (s *stubStockAlertService) Sweep(ctx context.Context, batchSize int) (services.StockSweepResult, error) {
	return s.sweepFunc(ctx, batchSize)
}

type stubHealthRepository struct {
	collectFunc func(ctx context.Context) (domain.SystemHealthReport, error)
}

func (s *stubHealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	return s.collectFunc(ctx)
}
