package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/brewcoin/api/internal/platform/httpx"
	"github.com/brewcoin/api/internal/platform/pagination"
	"github.com/brewcoin/api/internal/services"
)

const maxOrderRequestBody = 4 * 1024

// OrderHandlers serves order history reads and lifecycle transitions.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs order handlers.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers order endpoints under the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.list)
	r.Get("/{orderID}", h.get)
	r.Delete("/{orderID}", h.remove)
	r.Post("/{orderID}:status", h.transition)
}

type orderLinePayload struct {
	ProductID       string `json:"productId"`
	Name            string `json:"name"`
	Quantity        int64  `json:"quantity"`
	UnitPrice       int64  `json:"unitPrice"`
	LineTotal       int64  `json:"lineTotal"`
	PaymentOverride string `json:"paymentOverride,omitempty"`
}

type orderTotalsPayload struct {
	Subtotal         int64 `json:"subtotal"`
	VolumeDiscount   int64 `json:"volumeDiscount"`
	LoyaltyDiscount  int64 `json:"loyaltyDiscount"`
	CashSavings      int64 `json:"cashSavings"`
	CoinsRedeemed    int64 `json:"coinsRedeemed"`
	CoinsEarned      int64 `json:"coinsEarned"`
	Total            int64 `json:"total"`
	FreeUnitEligible bool  `json:"freeUnitEligible"`
}

type orderPayload struct {
	ID            string             `json:"id"`
	Number        int64              `json:"number,omitempty"`
	ClientID      string             `json:"clientId,omitempty"`
	LocationID    string             `json:"locationId"`
	PaymentMethod string             `json:"paymentMethod"`
	Status        string             `json:"status"`
	Lines         []orderLinePayload `json:"lines"`
	Totals        orderTotalsPayload `json:"totals"`
	Comment       string             `json:"comment,omitempty"`
	CreatedAt     string             `json:"createdAt,omitempty"`
	UpdatedAt     string             `json:"updatedAt,omitempty"`
}

type orderListResponse struct {
	Orders        []orderPayload `json:"orders"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

type orderStatusRequest struct {
	Status string `json:"status"`
}

func toOrderPayload(order services.Order) orderPayload {
	lines := make([]orderLinePayload, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLinePayload{
			ProductID:       line.ProductID,
			Name:            line.Name,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			LineTotal:       line.LineTotal,
			PaymentOverride: string(line.PaymentOverride),
		})
	}
	return orderPayload{
		ID:            order.ID,
		Number:        order.Number,
		ClientID:      order.ClientID,
		LocationID:    order.LocationID,
		PaymentMethod: string(order.PaymentMethod),
		Status:        string(order.Status),
		Lines:         lines,
		Totals: orderTotalsPayload{
			Subtotal:         order.Totals.Subtotal,
			VolumeDiscount:   order.Totals.VolumeDiscount,
			LoyaltyDiscount:  order.Totals.LoyaltyDiscount,
			CashSavings:      order.Totals.CashSavings,
			CoinsRedeemed:    order.Totals.CoinsRedeemed,
			CoinsEarned:      order.Totals.CoinsEarned,
			Total:            order.Totals.Total,
			FreeUnitEligible: order.Totals.FreeUnitEligible,
		},
		Comment:   order.Comment,
		CreatedAt: formatTime(order.CreatedAt),
		UpdatedAt: formatTime(order.UpdatedAt),
	}
}

func (h *OrderHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h == nil || h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	clientID := strings.TrimSpace(r.URL.Query().Get("clientId"))
	if clientID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "clientId query parameter is required", http.StatusBadRequest))
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize:    20,
		MaxPageSize:        100,
		AllowedOrderFields: []string{"createdAt"},
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListOrders(ctx, clientID, params)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	resp := orderListResponse{
		Orders:        make([]orderPayload, 0, len(page.Orders)),
		NextPageToken: page.NextPageToken,
	}
	for _, order := range page.Orders {
		resp.Orders = append(resp.Orders, toOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *OrderHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h == nil || h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toOrderPayload(order))
}

func (h *OrderHandlers) remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h == nil || h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	if err := h.orders.DeleteOrder(ctx, chi.URLParam(r, "orderID")); err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandlers) transition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h == nil || h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxOrderRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req orderStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	order, err := h.orders.TransitionStatus(ctx, services.OrderStatusCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Status:  req.Status,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toOrderPayload(order))
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", "status transition not allowed", http.StatusConflict))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "order service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
