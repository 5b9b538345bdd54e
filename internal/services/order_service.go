package services

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/brewcoin/api/internal/domain"
	"github.com/brewcoin/api/internal/platform/pagination"
	"github.com/brewcoin/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput indicates a missing or malformed identifier or status.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order does not exist or has been removed.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidTransition indicates the requested status change is not allowed.
	ErrOrderInvalidTransition = errors.New("order: invalid status transition")
	// ErrOrderUnavailable indicates order dependencies are currently unavailable.
	ErrOrderUnavailable = errors.New("order: unavailable")
)

// OrderServiceDeps wires the dependencies required by the order service.
type OrderServiceDeps struct {
	Orders repositories.OrderRepository
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders repositories.OrderRepository
	now    func() time.Time
	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderService constructs an OrderService validating required dependencies.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders: deps.Orders,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// GetOrder fetches a single order. Soft-deleted orders behave as missing.
func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return Order{}, s.translateError(err)
	}
	if order.Status == domain.OrderStatusDeleted {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders returns a page of the client's order history, newest first.
func (s *orderService) ListOrders(ctx context.Context, clientID string, params pagination.Params) (OrderPage, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return OrderPage{}, ErrOrderInvalidInput
	}

	page, err := s.orders.ListByClient(ctx, clientID, pagination.Must(params))
	if err != nil {
		return OrderPage{}, s.translateError(err)
	}
	return OrderPage{
		Orders:        page.Orders,
		NextPageToken: page.NextPageToken,
	}, nil
}

// DeleteOrder soft-deletes the order. Deleting an already deleted order is a no-op.
func (s *orderService) DeleteOrder(ctx context.Context, orderID string) error {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return ErrOrderInvalidInput
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return s.translateError(err)
	}
	if order.Status == domain.OrderStatusDeleted {
		return nil
	}
	if !order.Status.CanTransition(domain.OrderStatusDeleted) {
		return ErrOrderInvalidTransition
	}

	if _, err := s.orders.UpdateStatus(ctx, orderID, domain.OrderStatusDeleted, s.now()); err != nil {
		return s.translateError(err)
	}
	s.logger(ctx, "order_deleted", map[string]any{"orderId": orderID})
	return nil
}

// TransitionStatus moves an order along its fulfilment lifecycle.
func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}
	next, ok := parseOrderStatus(cmd.Status)
	if !ok {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return Order{}, s.translateError(err)
	}
	if order.Status == next {
		return order, nil
	}
	if !order.Status.CanTransition(next) {
		return Order{}, ErrOrderInvalidTransition
	}

	updated, err := s.orders.UpdateStatus(ctx, orderID, next, s.now())
	if err != nil {
		return Order{}, s.translateError(err)
	}
	s.logger(ctx, "order_status_changed", map[string]any{
		"orderId": orderID,
		"from":    string(order.Status),
		"to":      string(next),
	})
	return updated, nil
}

func (s *orderService) translateError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrOrderNotFound
		case repoErr.IsConflict():
			return ErrOrderInvalidTransition
		default:
			return ErrOrderUnavailable
		}
	}
	if errors.Is(err, pagination.ErrInvalidPageToken) {
		return ErrOrderInvalidInput
	}
	return ErrOrderUnavailable
}

func parseOrderStatus(value string) (OrderStatus, bool) {
	status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(value)))
	switch status {
	case domain.OrderStatusNew, domain.OrderStatusPreorder, domain.OrderStatusProcessing,
		domain.OrderStatusReady, domain.OrderStatusCompleted, domain.OrderStatusDeleted:
		return status, true
	default:
		return "", false
	}
}
