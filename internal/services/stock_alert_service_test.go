package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/brewcoin/api/internal/domain"
)

func TestStockAlertSweep(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	pending := []domain.StockSubscription{
		{ID: "sub-1", ProductID: "espresso", LocationID: "loc-central", ChatID: "chat-1"},
		{ID: "sub-2", ProductID: "beans", LocationID: "loc-central", ChatID: "chat-2"},
		{ID: "sub-3", ProductID: "ghost", LocationID: "loc-central", ChatID: "chat-3"},
	}

	subs := &stubSubscriptionRepository{
		listPendingFunc: func(_ context.Context, limit int) ([]domain.StockSubscription, error) {
			if limit != 50 {
				t.Errorf("limit = %d, want 50", limit)
			}
			return pending, nil
		},
	}
	var markedIDs []string
	subs.markNotifiedFunc = func(_ context.Context, subscriptionID string, at time.Time) error {
		if !at.Equal(now) {
			t.Errorf("notified at = %v, want %v", at, now)
		}
		markedIDs = append(markedIDs, subscriptionID)
		return nil
	}

	inventory := &stubInventoryRepository{
		getFunc: func(_ context.Context, productID, _ string) (domain.InventoryRecord, error) {
			switch productID {
			case "espresso":
				return domain.InventoryRecord{ProductID: productID, Quantity: 4}, nil
			case "beans":
				return domain.InventoryRecord{ProductID: productID, Quantity: 0}, nil
			default:
				return domain.InventoryRecord{}, notFoundErr("no stock row")
			}
		},
	}

	var notifiedSubs []string
	notifier := &stubStockAlertNotifier{
		stockAvailableFunc: func(_ context.Context, sub domain.StockSubscription, quantity int64) error {
			if quantity != 4 {
				t.Errorf("quantity = %d, want 4", quantity)
			}
			notifiedSubs = append(notifiedSubs, sub.ID)
			return nil
		},
	}

	service, err := NewStockAlertService(StockAlertServiceDeps{
		Subscriptions: subs,
		Inventory:     inventory,
		Notifier:      notifier,
		Clock:         func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewStockAlertService: %v", err)
	}

	result, err := service.Sweep(context.Background(), 50)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if result.Scanned != 3 || result.Notified != 1 || result.Skipped != 2 {
		t.Errorf("unexpected result %+v", result)
	}
	if len(notifiedSubs) != 1 || notifiedSubs[0] != "sub-1" {
		t.Errorf("notified %v, want [sub-1]", notifiedSubs)
	}
	if len(markedIDs) != 1 || markedIDs[0] != "sub-1" {
		t.Errorf("marked %v, want [sub-1]", markedIDs)
	}
}

func TestStockAlertSweepNotifyFailureStaysPending(t *testing.T) {
	subs := &stubSubscriptionRepository{
		listPendingFunc: func(_ context.Context, _ int) ([]domain.StockSubscription, error) {
			return []domain.StockSubscription{{ID: "sub-1", ProductID: "espresso", LocationID: "loc-central"}}, nil
		},
		markNotifiedFunc: func(_ context.Context, _ string, _ time.Time) error {
			t.Error("failed notification must not be marked")
			return nil
		},
	}
	inventory := &stubInventoryRepository{
		getFunc: func(_ context.Context, _, _ string) (domain.InventoryRecord, error) {
			return domain.InventoryRecord{Quantity: 2}, nil
		},
	}
	notifier := &stubStockAlertNotifier{
		stockAvailableFunc: func(_ context.Context, _ domain.StockSubscription, _ int64) error {
			return errors.New("send failed")
		},
	}

	service, err := NewStockAlertService(StockAlertServiceDeps{
		Subscriptions: subs,
		Inventory:     inventory,
		Notifier:      notifier,
	})
	if err != nil {
		t.Fatalf("NewStockAlertService: %v", err)
	}

	result, err := service.Sweep(context.Background(), 0)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if result.Notified != 0 || result.Skipped != 1 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestStockAlertSweepListFailure(t *testing.T) {
	subs := &stubSubscriptionRepository{
		listPendingFunc: func(_ context.Context, _ int) ([]domain.StockSubscription, error) {
			return nil, unavailableErr("backend down")
		},
	}
	service, err := NewStockAlertService(StockAlertServiceDeps{
		Subscriptions: subs,
		Inventory:     &stubInventoryRepository{},
		Notifier:      &stubStockAlertNotifier{},
	})
	if err != nil {
		t.Fatalf("NewStockAlertService: %v", err)
	}

	if _, err := service.Sweep(context.Background(), 10); !errors.Is(err, ErrStockAlertUnavailable) {
		t.Errorf("expected ErrStockAlertUnavailable, got %v", err)
	}
}
