package domain

import "testing"

func TestTierForSpendBoundaries(t *testing.T) {
	cases := []struct {
		spend int64
		want  int
	}{
		{0, 0},
		{23999, 0},
		{24000, TierPercentBronze},
		{43999, TierPercentBronze},
		{44000, TierPercentSilver},
		{58999, TierPercentSilver},
		{59000, TierPercentGold},
		{1000000, TierPercentGold},
	}
	for _, tc := range cases {
		if got := TierForSpend(tc.spend); got != tc.want {
			t.Errorf("TierForSpend(%d) = %d, want %d", tc.spend, got, tc.want)
		}
	}
}

func TestVolumeDiscountPerUnitSteps(t *testing.T) {
	cases := []struct {
		qty  int64
		want int64
	}{
		{0, 0},
		{1, 0},
		{2, VolumeDiscountSmall},
		{4, VolumeDiscountSmall},
		{5, VolumeDiscountMedium},
		{6, VolumeDiscountMedium},
		{7, VolumeDiscountLarge},
		{50, VolumeDiscountLarge},
	}
	for _, tc := range cases {
		if got := VolumeDiscountPerUnit(tc.qty); got != tc.want {
			t.Errorf("VolumeDiscountPerUnit(%d) = %d, want %d", tc.qty, got, tc.want)
		}
	}
}

func TestEffectiveUnitPrice(t *testing.T) {
	line := CartLine{UnitPriceCash: 100, UnitPriceCard: 120}

	if got := line.EffectiveUnitPrice(PaymentCash); got != 100 {
		t.Errorf("cash price = %d, want 100", got)
	}
	if got := line.EffectiveUnitPrice(PaymentCard); got != 120 {
		t.Errorf("card price = %d, want 120", got)
	}
	if got := line.EffectiveUnitPrice(PaymentMixed); got != 120 {
		t.Errorf("mixed without override = %d, want card price 120", got)
	}

	line.PaymentOverride = PaymentCash
	if got := line.EffectiveUnitPrice(PaymentMixed); got != 100 {
		t.Errorf("mixed with cash override = %d, want 100", got)
	}
	if got := line.EffectiveUnitPrice(PaymentCard); got != 120 {
		t.Errorf("override must not apply outside mixed mode, got %d", got)
	}
}

func TestCartNormalizeDropsOverridesOutsideMixed(t *testing.T) {
	cart := Cart{
		PaymentMethod: PaymentCard,
		Lines: []CartLine{
			{ProductID: "p1", PaymentOverride: PaymentCash},
			{ProductID: "p2"},
		},
	}

	normalized := cart.Normalize()
	if normalized.Lines[0].PaymentOverride != "" {
		t.Errorf("expected override cleared, got %q", normalized.Lines[0].PaymentOverride)
	}
	if cart.Lines[0].PaymentOverride != PaymentCash {
		t.Error("Normalize must not mutate the original cart")
	}

	cart.PaymentMethod = PaymentMixed
	normalized = cart.Normalize()
	if normalized.Lines[0].PaymentOverride != PaymentCash {
		t.Error("mixed carts keep per-line overrides")
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	allowed := []struct {
		from, to OrderStatus
	}{
		{OrderStatusNew, OrderStatusProcessing},
		{OrderStatusNew, OrderStatusDeleted},
		{OrderStatusPreorder, OrderStatusProcessing},
		{OrderStatusPreorder, OrderStatusDeleted},
		{OrderStatusProcessing, OrderStatusReady},
		{OrderStatusProcessing, OrderStatusDeleted},
		{OrderStatusReady, OrderStatusCompleted},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransition(tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct {
		from, to OrderStatus
	}{
		{OrderStatusNew, OrderStatusReady},
		{OrderStatusNew, OrderStatusCompleted},
		{OrderStatusReady, OrderStatusDeleted},
		{OrderStatusCompleted, OrderStatusProcessing},
		{OrderStatusDeleted, OrderStatusNew},
		{OrderStatusProcessing, OrderStatusNew},
	}
	for _, tc := range denied {
		if tc.from.CanTransition(tc.to) {
			t.Errorf("expected %s -> %s to be denied", tc.from, tc.to)
		}
	}

	if !OrderStatusCompleted.IsTerminal() || !OrderStatusDeleted.IsTerminal() {
		t.Error("completed and deleted must be terminal")
	}
	if OrderStatusReady.IsTerminal() {
		t.Error("ready is not terminal")
	}
}

func TestParsePaymentMethod(t *testing.T) {
	if method, ok := ParsePaymentMethod(" Cash "); !ok || method != PaymentCash {
		t.Errorf("ParsePaymentMethod(Cash) = %q, %v", method, ok)
	}
	if method, ok := ParsePaymentMethod("MIXED"); !ok || method != PaymentMixed {
		t.Errorf("ParsePaymentMethod(MIXED) = %q, %v", method, ok)
	}
	if _, ok := ParsePaymentMethod("wire"); ok {
		t.Error("unexpected method accepted")
	}
	if _, ok := ParsePaymentMethod(""); ok {
		t.Error("empty method accepted")
	}
}

func TestOrderSettlementSettled(t *testing.T) {
	if (OrderSettlement{}).Settled() {
		t.Error("empty settlement reported settled")
	}
	if (OrderSettlement{InventoryApplied: true}).Settled() {
		t.Error("partial settlement reported settled")
	}
	if !(OrderSettlement{InventoryApplied: true, LoyaltyApplied: true}).Settled() {
		t.Error("complete settlement not reported settled")
	}
}

func TestPricingBreakdownTotals(t *testing.T) {
	breakdown := PricingBreakdown{
		Subtotal:         500,
		VolumeDiscount:   60,
		LoyaltyDiscount:  25,
		CashSavings:      40,
		CoinsRedeemed:    0,
		CashbackPreview:  7,
		Total:            415,
		FreeUnitEligible: true,
	}
	totals := breakdown.Totals()
	if totals.CoinsEarned != 7 {
		t.Errorf("CoinsEarned = %d, want cashback preview 7", totals.CoinsEarned)
	}
	if totals.Total != 415 || totals.Subtotal != 500 || !totals.FreeUnitEligible {
		t.Errorf("unexpected totals %+v", totals)
	}
}
