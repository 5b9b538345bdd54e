package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/brewcoin/api/internal/platform/httpx"
	"github.com/brewcoin/api/internal/services"
)

const maxCheckoutRequestBody = 16 * 1024

// CheckoutHandlers exposes the order submission endpoint.
type CheckoutHandlers struct {
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs checkout handlers.
func NewCheckoutHandlers(checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{checkout: checkout}
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.submit)
}

type checkoutLineRequest struct {
	ProductID       string `json:"productId"`
	Quantity        int64  `json:"quantity"`
	PaymentOverride string `json:"paymentOverride,omitempty"`
}

type checkoutRequest struct {
	ClientID      string                `json:"clientId"`
	LocationID    string                `json:"locationId"`
	PaymentMethod string                `json:"paymentMethod"`
	Lines         []checkoutLineRequest `json:"lines"`
	CoinsToRedeem int64                 `json:"coinsToRedeem"`
	Comment       string                `json:"comment"`
	ExpectedTotal int64                 `json:"expectedTotal"`
	Preorder      bool                  `json:"preorder"`
}

type pricingPayload struct {
	Subtotal         int64 `json:"subtotal"`
	VolumeDiscount   int64 `json:"volumeDiscount"`
	LoyaltyDiscount  int64 `json:"loyaltyDiscount"`
	CashSavings      int64 `json:"cashSavings"`
	CoinsRedeemed    int64 `json:"coinsRedeemed"`
	CashbackPreview  int64 `json:"cashbackPreview"`
	Total            int64 `json:"total"`
	FreeUnitEligible bool  `json:"freeUnitEligible"`
}

type loyaltyPayload struct {
	ClientID            string `json:"clientId"`
	CoinBalance         int64  `json:"coinBalance"`
	LifetimeSpend       int64  `json:"lifetimeSpend"`
	OrderCount          int64  `json:"orderCount"`
	DiscountTierPercent int    `json:"discountTierPercent"`
}

type checkoutResponse struct {
	Order   orderPayload    `json:"order"`
	Pricing pricingPayload  `json:"pricing"`
	Loyalty *loyaltyPayload `json:"loyalty,omitempty"`
}

func (h *CheckoutHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h == nil || h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req checkoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	lines := make([]services.CheckoutLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, services.CheckoutLine{
			ProductID:       strings.TrimSpace(line.ProductID),
			Quantity:        line.Quantity,
			PaymentOverride: strings.TrimSpace(line.PaymentOverride),
		})
	}

	cmd := services.CheckoutCommand{
		ClientID:      strings.TrimSpace(req.ClientID),
		LocationID:    strings.TrimSpace(req.LocationID),
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		Lines:         lines,
		CoinsToRedeem: req.CoinsToRedeem,
		Comment:       strings.TrimSpace(req.Comment),
		ExpectedTotal: req.ExpectedTotal,
		Preorder:      req.Preorder,
	}

	result, err := h.checkout.Checkout(ctx, cmd)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	resp := checkoutResponse{
		Order: toOrderPayload(result.Order),
		Pricing: pricingPayload{
			Subtotal:         result.Pricing.Subtotal,
			VolumeDiscount:   result.Pricing.VolumeDiscount,
			LoyaltyDiscount:  result.Pricing.LoyaltyDiscount,
			CashSavings:      result.Pricing.CashSavings,
			CoinsRedeemed:    result.Pricing.CoinsRedeemed,
			CashbackPreview:  result.Pricing.CashbackPreview,
			Total:            result.Pricing.Total,
			FreeUnitEligible: result.Pricing.FreeUnitEligible,
		},
	}
	if result.Loyalty != nil {
		resp.Loyalty = &loyaltyPayload{
			ClientID:            result.Loyalty.ClientID,
			CoinBalance:         result.Loyalty.CoinBalance,
			LifetimeSpend:       result.Loyalty.LifetimeSpend,
			OrderCount:          result.Loyalty.OrderCount,
			DiscountTierPercent: result.Loyalty.DiscountTierPercent,
		}
	}

	writeJSONResponse(w, http.StatusCreated, resp)
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCheckoutInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutUnknownProduct):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_product", "cart references a missing or inactive product", http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrCheckoutPriceMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("price_mismatch", "cart total is stale; re-price and retry", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutConflict):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_conflict", "order already exists; retry with a new request", http.StatusConflict))
	case errors.Is(err, services.ErrCheckoutUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to process checkout request", http.StatusInternalServerError))
	}
}
