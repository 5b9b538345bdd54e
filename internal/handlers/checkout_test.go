package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/brewcoin/api/internal/domain"
	"github.com/brewcoin/api/internal/services"
)

func newCheckoutRouter(service services.CheckoutService) chi.Router {
	r := chi.NewRouter()
	NewCheckoutHandlers(service).Routes(r)
	return r
}

func TestCheckoutHandlerSuccess(t *testing.T) {
	var received services.CheckoutCommand
	service := &stubCheckoutService{
		checkoutFunc: func(_ context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
			received = cmd
			return services.CheckoutResult{
				Order: services.Order{
					ID:            "ord_1",
					Number:        42,
					ClientID:      "client-1",
					LocationID:    "loc-central",
					PaymentMethod: domain.PaymentCash,
					Status:        domain.OrderStatusNew,
					Totals:        domain.OrderTotals{Subtotal: 200, Total: 140},
				},
				Pricing: services.PricingBreakdown{Subtotal: 200, VolumeDiscount: 60, CashbackPreview: 3, Total: 140},
				Loyalty: &services.LoyaltySnapshot{ClientID: "client-1", CoinBalance: 33},
			}, nil
		},
	}
	router := newCheckoutRouter(service)

	body := `{
		"clientId": "client-1",
		"locationId": "loc-central",
		"paymentMethod": "cash",
		"lines": [{"productId": "espresso", "quantity": 2}],
		"expectedTotal": 140
	}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if received.ClientID != "client-1" || received.ExpectedTotal != 140 {
		t.Errorf("unexpected command %+v", received)
	}
	if len(received.Lines) != 1 || received.Lines[0].Quantity != 2 {
		t.Errorf("unexpected lines %+v", received.Lines)
	}

	var resp struct {
		Order struct {
			ID     string `json:"id"`
			Number int64  `json:"number"`
		} `json:"order"`
		Pricing struct {
			Total           int64 `json:"total"`
			CashbackPreview int64 `json:"cashbackPreview"`
		} `json:"pricing"`
		Loyalty *struct {
			CoinBalance int64 `json:"coinBalance"`
		} `json:"loyalty"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Order.ID != "ord_1" || resp.Order.Number != 42 {
		t.Errorf("unexpected order payload %+v", resp.Order)
	}
	if resp.Pricing.Total != 140 || resp.Pricing.CashbackPreview != 3 {
		t.Errorf("unexpected pricing payload %+v", resp.Pricing)
	}
	if resp.Loyalty == nil || resp.Loyalty.CoinBalance != 33 {
		t.Errorf("unexpected loyalty payload %+v", resp.Loyalty)
	}
}

func TestCheckoutHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid input", services.ErrCheckoutInvalidInput, http.StatusBadRequest, "invalid_request"},
		{"unknown product", services.ErrCheckoutUnknownProduct, http.StatusUnprocessableEntity, "unknown_product"},
		{"price mismatch", services.ErrCheckoutPriceMismatch, http.StatusConflict, "price_mismatch"},
		{"conflict", services.ErrCheckoutConflict, http.StatusConflict, "checkout_conflict"},
		{"unavailable", services.ErrCheckoutUnavailable, http.StatusServiceUnavailable, "checkout_unavailable"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubCheckoutService{
				checkoutFunc: func(_ context.Context, _ services.CheckoutCommand) (services.CheckoutResult, error) {
					return services.CheckoutResult{}, tc.err
				},
			}
			router := newCheckoutRouter(service)

			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"locationId":"loc","paymentMethod":"cash","lines":[{"productId":"a","quantity":1}]}`))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			var payload struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode error payload: %v", err)
			}
			if payload.Error != tc.wantCode {
				t.Errorf("error code = %q, want %q", payload.Error, tc.wantCode)
			}
		})
	}
}

func TestCheckoutHandlerRejectsBadBodies(t *testing.T) {
	service := &stubCheckoutService{
		checkoutFunc: func(_ context.Context, _ services.CheckoutCommand) (services.CheckoutResult, error) {
			t.Error("service must not be called for malformed bodies")
			return services.CheckoutResult{}, nil
		},
	}
	router := newCheckoutRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty body status = %d, want 400", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"comment":"`+strings.Repeat("x", maxCheckoutRequestBody)+`"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body status = %d, want 413", rec.Code)
	}
}
