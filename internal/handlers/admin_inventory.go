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

const maxInventoryRequestBody = 4 * 1024

// AdminInventoryHandlers serves staff stock management endpoints.
type AdminInventoryHandlers struct {
	inventory services.InventoryService
}

// NewAdminInventoryHandlers constructs admin inventory handlers.
func NewAdminInventoryHandlers(inventory services.InventoryService) *AdminInventoryHandlers {
	return &AdminInventoryHandlers{inventory: inventory}
}

// Routes registers inventory endpoints under the provided router.
func (h *AdminInventoryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/inventory", h.list)
	r.Get("/inventory/{productID}", h.get)
	r.Put("/inventory/{productID}", h.set)
}

type inventoryPayload struct {
	ProductID  string `json:"productId"`
	LocationID string `json:"locationId"`
	Quantity   int64  `json:"quantity"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

type inventoryListResponse struct {
	Records []inventoryPayload `json:"records"`
}

type setStockRequest struct {
	LocationID string `json:"locationId"`
	Quantity   int64  `json:"quantity"`
}

func toInventoryPayload(record services.InventoryRecord) inventoryPayload {
	return inventoryPayload{
		ProductID:  record.ProductID,
		LocationID: record.LocationID,
		Quantity:   record.Quantity,
		UpdatedAt:  formatTime(record.UpdatedAt),
	}
}

func (h *AdminInventoryHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h == nil || h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}

	locationID := strings.TrimSpace(r.URL.Query().Get("locationId"))
	records, err := h.inventory.ListStock(ctx, locationID)
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}

	resp := inventoryListResponse{Records: make([]inventoryPayload, 0, len(records))}
	for _, record := range records {
		resp.Records = append(resp.Records, toInventoryPayload(record))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *AdminInventoryHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h == nil || h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}

	record, err := h.inventory.GetStock(ctx, chi.URLParam(r, "productID"), strings.TrimSpace(r.URL.Query().Get("locationId")))
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toInventoryPayload(record))
}

func (h *AdminInventoryHandlers) set(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h == nil || h.inventory == nil {
		httpx.WriteError(ctx, w, httpx.NewError("inventory_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxInventoryRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req setStockRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	record, err := h.inventory.SetStock(ctx, services.SetStockCommand{
		ProductID:  chi.URLParam(r, "productID"),
		LocationID: strings.TrimSpace(req.LocationID),
		Quantity:   req.Quantity,
	})
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toInventoryPayload(record))
}

func writeInventoryError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInventoryInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInventoryNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("stock_not_found", "no stock row for product and location", http.StatusNotFound))
	case errors.Is(err, services.ErrInventoryUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("inventory_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("inventory_error", "failed to process inventory request", http.StatusInternalServerError))
	}
}
