package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/brewcoin/api/internal/domain"
	"github.com/brewcoin/api/internal/repositories"
)

const defaultSweepBatchSize = 200

// ErrStockAlertUnavailable indicates sweep dependencies are currently unavailable.
var ErrStockAlertUnavailable = errors.New("stock alert: unavailable")

// StockAlertNotifier pings a subscriber that their product is back in stock.
type StockAlertNotifier interface {
	StockAvailable(ctx context.Context, sub domain.StockSubscription, quantity int64) error
}

// StockAlertServiceDeps wires the dependencies required by the stock alert service.
type StockAlertServiceDeps struct {
	Subscriptions repositories.SubscriptionRepository
	Inventory     repositories.InventoryRepository
	Notifier      StockAlertNotifier
	Clock         func() time.Time
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type stockAlertService struct {
	subscriptions repositories.SubscriptionRepository
	inventory     repositories.InventoryRepository
	notifier      StockAlertNotifier
	now           func() time.Time
	logger        func(ctx context.Context, event string, fields map[string]any)
}

// NewStockAlertService constructs a StockAlertService validating required dependencies.
func NewStockAlertService(deps StockAlertServiceDeps) (StockAlertService, error) {
	if deps.Subscriptions == nil {
		return nil, errors.New("stock alert service: subscription repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("stock alert service: inventory repository is required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("stock alert service: notifier is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &stockAlertService{
		subscriptions: deps.Subscriptions,
		inventory:     deps.Inventory,
		notifier:      deps.Notifier,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Sweep walks pending subscriptions and pings subscribers whose product is
// back in stock. Failed notifications stay pending for the next sweep.
func (s *stockAlertService) Sweep(ctx context.Context, batchSize int) (StockSweepResult, error) {
	if s == nil || s.subscriptions == nil {
		return StockSweepResult{}, ErrStockAlertUnavailable
	}
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}

	pending, err := s.subscriptions.ListPending(ctx, batchSize)
	if err != nil {
		return StockSweepResult{}, ErrStockAlertUnavailable
	}

	result := StockSweepResult{Scanned: len(pending)}
	for _, sub := range pending {
		record, err := s.inventory.Get(ctx, sub.ProductID, sub.LocationID)
		if err != nil {
			var repoErr repositories.RepositoryError
			if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
				s.logger(ctx, "stock_sweep_lookup_failed", map[string]any{
					"subscriptionId": sub.ID,
					"productId":      sub.ProductID,
					"error":          err.Error(),
				})
			}
			result.Skipped++
			continue
		}
		if record.Quantity <= 0 {
			result.Skipped++
			continue
		}

		if err := s.notifier.StockAvailable(ctx, sub, record.Quantity); err != nil {
			s.logger(ctx, "stock_sweep_notify_failed", map[string]any{
				"subscriptionId": sub.ID,
				"error":          err.Error(),
			})
			result.Skipped++
			continue
		}
		if err := s.subscriptions.MarkNotified(ctx, sub.ID, s.now()); err != nil {
			s.logger(ctx, "stock_sweep_mark_failed", map[string]any{
				"subscriptionId": sub.ID,
				"error":          err.Error(),
			})
		}
		result.Notified++
	}
	return result, nil
}
