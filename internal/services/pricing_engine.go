package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/brewcoin/api/internal/domain"
)

var (
	// ErrPricingInvalidInput signals bad cart data such as non-positive quantities or negative prices.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
)

// PricingEngineDeps wires the dependencies required by the pricing engine.
type PricingEngineDeps struct {
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type pricingEngine struct {
	now    func() time.Time
	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewPricingEngine constructs a deterministic PricingEngine.
func NewPricingEngine(deps PricingEngineDeps) (PricingEngine, error) {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &pricingEngine{
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Price computes the full charge breakdown for the cart snapshot. An empty
// cart yields a zeroed breakdown with Empty set, not an error.
func (e *pricingEngine) Price(ctx context.Context, input PricingInput) (PricingBreakdown, error) {
	if e == nil {
		return PricingBreakdown{}, ErrPricingInvalidInput
	}

	cart := input.Cart.Normalize()
	if len(cart.Lines) == 0 {
		return PricingBreakdown{Empty: true}, nil
	}
	if err := validateCartLines(cart.Lines); err != nil {
		return PricingBreakdown{}, err
	}

	var (
		subtotal    int64
		totalQty    int64
		cashSavings int64
		lines       = make([]domain.LinePricing, 0, len(cart.Lines))
	)
	for _, line := range cart.Lines {
		unitPrice := line.EffectiveUnitPrice(cart.PaymentMethod)
		lineTotal := unitPrice * line.Quantity
		subtotal += lineTotal
		totalQty += line.Quantity

		if cart.PaymentMethod == domain.PaymentCash {
			if delta := line.UnitPriceCard - line.UnitPriceCash; delta > 0 {
				cashSavings += delta * line.Quantity
			}
		}

		lines = append(lines, domain.LinePricing{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: unitPrice,
			LineTotal: lineTotal,
		})
	}

	volumeDiscount := domain.VolumeDiscountPerUnit(totalQty) * totalQty

	tierPercent := input.TierPercent
	if tierPercent < 0 {
		tierPercent = 0
	}
	loyaltyDiscount := subtotal * int64(tierPercent) / 100

	coinsRedeemed := e.clampCoins(ctx, cart.CoinsToRedeem, input.CoinBalance, subtotal)

	var cashback int64
	if coinsRedeemed == 0 {
		cashback = subtotal * domain.CashbackPermille / 1000
	}

	total := subtotal - volumeDiscount - loyaltyDiscount - coinsRedeemed
	if total < 0 {
		e.logger(ctx, "pricing_total_clamped", map[string]any{
			"subtotal": subtotal,
			"total":    total,
		})
		total = 0
	}

	return PricingBreakdown{
		Subtotal:         subtotal,
		TotalQuantity:    totalQty,
		VolumeDiscount:   volumeDiscount,
		LoyaltyDiscount:  loyaltyDiscount,
		CashSavings:      cashSavings,
		CoinsRedeemed:    coinsRedeemed,
		CashbackPreview:  cashback,
		Total:            total,
		FreeUnitEligible: totalQty >= domain.VolumeQtyMedium,
		Lines:            lines,
	}, nil
}

// clampCoins caps redemption at the available balance and at half the subtotal.
func (e *pricingEngine) clampCoins(ctx context.Context, requested, balance, subtotal int64) int64 {
	if requested <= 0 {
		return 0
	}
	if balance < 0 {
		balance = 0
	}

	coins := requested
	if coins > balance {
		coins = balance
	}
	if limit := subtotal * domain.CoinRedemptionCapPermille / 1000; coins > limit {
		coins = limit
	}
	if coins < 0 {
		coins = 0
	}
	if coins != requested {
		e.logger(ctx, "pricing_coins_clamped", map[string]any{
			"requested": requested,
			"applied":   coins,
			"balance":   balance,
			"subtotal":  subtotal,
		})
	}
	return coins
}

func validateCartLines(lines []domain.CartLine) error {
	for i, line := range lines {
		if strings.TrimSpace(line.ProductID) == "" {
			return fmt.Errorf("%w: line %d missing product id", ErrPricingInvalidInput, i)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: line %d quantity must be positive", ErrPricingInvalidInput, i)
		}
		if line.UnitPriceCash < 0 || line.UnitPriceCard < 0 {
			return fmt.Errorf("%w: line %d has negative price", ErrPricingInvalidInput, i)
		}
	}
	return nil
}
