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
	// ErrInventoryInvalidInput indicates missing identifiers or a negative quantity.
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")
	// ErrInventoryNotFound indicates no stock row exists for the product and location.
	ErrInventoryNotFound = errors.New("inventory: not found")
	// ErrInventoryUnavailable indicates inventory dependencies are currently unavailable.
	ErrInventoryUnavailable = errors.New("inventory: unavailable")
)

// InventoryServiceDeps wires the dependencies required by the inventory service.
type InventoryServiceDeps struct {
	Inventory repositories.InventoryRepository
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	inventory repositories.InventoryRepository
	now       func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewInventoryService constructs an InventoryService validating required dependencies.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Inventory == nil {
		return nil, errors.New("inventory service: inventory repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryService{
		inventory: deps.Inventory,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// GetStock returns the on-hand quantity for one product at one location.
func (s *inventoryService) GetStock(ctx context.Context, productID, locationID string) (InventoryRecord, error) {
	productID = strings.TrimSpace(productID)
	locationID = strings.TrimSpace(locationID)
	if productID == "" || locationID == "" {
		return InventoryRecord{}, ErrInventoryInvalidInput
	}

	record, err := s.inventory.Get(ctx, productID, locationID)
	if err != nil {
		return InventoryRecord{}, s.translateError(err)
	}
	return record, nil
}

// ListStock returns every stock row held at the given location.
func (s *inventoryService) ListStock(ctx context.Context, locationID string) ([]InventoryRecord, error) {
	locationID = strings.TrimSpace(locationID)
	if locationID == "" {
		return nil, ErrInventoryInvalidInput
	}

	records, err := s.inventory.ListByLocation(ctx, locationID)
	if err != nil {
		return nil, s.translateError(err)
	}
	return records, nil
}

// SetStock upserts the on-hand quantity for staff restocking tooling.
func (s *inventoryService) SetStock(ctx context.Context, cmd SetStockCommand) (InventoryRecord, error) {
	cmd.ProductID = strings.TrimSpace(cmd.ProductID)
	cmd.LocationID = strings.TrimSpace(cmd.LocationID)
	if cmd.ProductID == "" || cmd.LocationID == "" || cmd.Quantity < 0 {
		return InventoryRecord{}, ErrInventoryInvalidInput
	}

	record, err := s.inventory.Put(ctx, domain.InventoryRecord{
		ProductID:  cmd.ProductID,
		LocationID: cmd.LocationID,
		Quantity:   cmd.Quantity,
		UpdatedAt:  s.now(),
	})
	if err != nil {
		return InventoryRecord{}, s.translateError(err)
	}
	s.logger(ctx, "inventory_stock_set", map[string]any{
		"productId":  cmd.ProductID,
		"locationId": cmd.LocationID,
		"quantity":   cmd.Quantity,
	})
	return record, nil
}

func (s *inventoryService) translateError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		if repoErr.IsNotFound() {
			return ErrInventoryNotFound
		}
	}
	return ErrInventoryUnavailable
}
