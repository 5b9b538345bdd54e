package domain

// Loyalty tier thresholds over lifetime spend. Boundaries are inclusive.
const (
	TierSpendBronze = 24000
	TierSpendSilver = 44000
	TierSpendGold   = 59000

	TierPercentBronze = 3
	TierPercentSilver = 5
	TierPercentGold   = 10
)

// Volume discount steps keyed by total cart quantity, applied per unit.
const (
	VolumeQtySmall  = 2
	VolumeQtyMedium = 5
	VolumeQtyLarge  = 7

	VolumeDiscountSmall  = 30
	VolumeDiscountMedium = 50
	VolumeDiscountLarge  = 60
)

// Coin economics. Redemption is capped at half the subtotal; cashback accrues
// at 1.5% only when no coins are redeemed on the order.
const (
	CoinRedemptionCapPermille = 500
	CashbackPermille          = 15
)

// TierForSpend derives the discount tier percentage from cumulative spend.
func TierForSpend(lifetimeSpend int64) int {
	switch {
	case lifetimeSpend >= TierSpendGold:
		return TierPercentGold
	case lifetimeSpend >= TierSpendSilver:
		return TierPercentSilver
	case lifetimeSpend >= TierSpendBronze:
		return TierPercentBronze
	default:
		return 0
	}
}

// VolumeDiscountPerUnit returns the per-unit discount for the given total quantity.
func VolumeDiscountPerUnit(totalQty int64) int64 {
	switch {
	case totalQty >= VolumeQtyLarge:
		return VolumeDiscountLarge
	case totalQty >= VolumeQtyMedium:
		return VolumeDiscountMedium
	case totalQty >= VolumeQtySmall:
		return VolumeDiscountSmall
	default:
		return 0
	}
}

// CartLine is a mutable line in an active cart session.
type CartLine struct {
	ProductID       string
	Name            string
	Quantity        int64
	UnitPriceCash   int64
	UnitPriceCard   int64
	PaymentOverride PaymentMethod
}

// EffectiveUnitPrice resolves the unit price for the cart's payment method.
// Under mixed payment each line follows its own override, defaulting to card.
func (l CartLine) EffectiveUnitPrice(method PaymentMethod) int64 {
	switch method {
	case PaymentCash:
		return l.UnitPriceCash
	case PaymentMixed:
		if l.PaymentOverride == PaymentCash {
			return l.UnitPriceCash
		}
		return l.UnitPriceCard
	default:
		return l.UnitPriceCard
	}
}

// Cart is the active shopping session priced by the engine on every mutation.
type Cart struct {
	Lines            []CartLine
	PickupLocationID string
	PaymentMethod    PaymentMethod
	CoinsToRedeem    int64
	Comment          string
}

// Normalize drops per-line overrides when the cart is not in mixed mode.
func (c Cart) Normalize() Cart {
	if c.PaymentMethod == PaymentMixed {
		return c
	}
	lines := make([]CartLine, len(c.Lines))
	copy(lines, c.Lines)
	for i := range lines {
		lines[i].PaymentOverride = ""
	}
	c.Lines = lines
	return c
}

// PricingInput is everything the engine needs: cart state plus a loyalty
// account snapshot taken at pricing time.
type PricingInput struct {
	Cart        Cart
	CoinBalance int64
	TierPercent int
}

// LinePricing reports the resolved price of one line inside a breakdown.
type LinePricing struct {
	ProductID string
	Quantity  int64
	UnitPrice int64
	LineTotal int64
}

// PricingBreakdown is the engine's deterministic output for a cart snapshot.
type PricingBreakdown struct {
	Subtotal         int64
	TotalQuantity    int64
	VolumeDiscount   int64
	LoyaltyDiscount  int64
	CashSavings      int64
	CoinsRedeemed    int64
	CashbackPreview  int64
	Total            int64
	FreeUnitEligible bool
	Empty            bool
	Lines            []LinePricing
}

// Totals converts the breakdown into the persisted order totals shape.
func (b PricingBreakdown) Totals() OrderTotals {
	return OrderTotals{
		Subtotal:         b.Subtotal,
		VolumeDiscount:   b.VolumeDiscount,
		LoyaltyDiscount:  b.LoyaltyDiscount,
		CashSavings:      b.CashSavings,
		CoinsRedeemed:    b.CoinsRedeemed,
		CoinsEarned:      b.CashbackPreview,
		Total:            b.Total,
		FreeUnitEligible: b.FreeUnitEligible,
	}
}
