package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/brewcoin/api/internal/platform/httpx"
	"github.com/brewcoin/api/internal/services"
)

const maxJobRequestBody = 64 * 1024

// InternalJobHandlers serves job endpoints invoked by Pub/Sub push
// subscriptions and the scheduler. Callers are authenticated by the OIDC
// middleware mounted on the internal route group.
type InternalJobHandlers struct {
	settlement  services.SettlementService
	stockAlerts services.StockAlertService
	sweepBatch  int
}

// NewInternalJobHandlers constructs internal job handlers.
func NewInternalJobHandlers(settlement services.SettlementService, stockAlerts services.StockAlertService, sweepBatch int) *InternalJobHandlers {
	return &InternalJobHandlers{
		settlement:  settlement,
		stockAlerts: stockAlerts,
		sweepBatch:  sweepBatch,
	}
}

// Routes registers job endpoints under the provided router.
func (h *InternalJobHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/jobs/settlement", h.settle)
	r.Post("/jobs/stock-sweep", h.sweep)
}

// pubsubPushEnvelope is the wrapper Pub/Sub wraps around pushed messages.
type pubsubPushEnvelope struct {
	Message struct {
		Data       []byte            `json:"data"`
		Attributes map[string]string `json:"attributes"`
		MessageID  string            `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type settlementJobRequest struct {
	OrderID string `json:"orderId"`
}

type settlementJobResponse struct {
	OrderID          string `json:"orderId"`
	InventoryApplied bool   `json:"inventoryApplied"`
	LoyaltyApplied   bool   `json:"loyaltyApplied"`
	Settled          bool   `json:"settled"`
}

type sweepJobResponse struct {
	Scanned  int `json:"scanned"`
	Notified int `json:"notified"`
	Skipped  int `json:"skipped"`
}

func (h *InternalJobHandlers) settle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h == nil || h.settlement == nil {
		httpx.WriteError(ctx, w, httpx.NewError("jobs_unavailable", "settlement service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxJobRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	orderID, err := extractSettlementOrderID(body)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	result, err := h.settlement.Settle(ctx, orderID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSettlementInvalidInput):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		case errors.Is(err, services.ErrSettlementNotFound):
			// Acknowledge so Pub/Sub stops redelivering a message for a
			// document that will never appear.
			writeJSONResponse(w, http.StatusOK, settlementJobResponse{OrderID: orderID})
		default:
			httpx.WriteError(ctx, w, httpx.NewError("jobs_unavailable", "settlement temporarily unavailable", http.StatusServiceUnavailable))
		}
		return
	}

	status := http.StatusOK
	if !result.Settled {
		// Non-2xx keeps the message queued for another attempt.
		status = http.StatusInternalServerError
	}
	writeJSONResponse(w, status, settlementJobResponse{
		OrderID:          result.OrderID,
		InventoryApplied: result.InventoryApplied,
		LoyaltyApplied:   result.LoyaltyApplied,
		Settled:          result.Settled,
	})
}

func (h *InternalJobHandlers) sweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h == nil || h.stockAlerts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("jobs_unavailable", "stock alert service unavailable", http.StatusServiceUnavailable))
		return
	}

	result, err := h.stockAlerts.Sweep(ctx, h.sweepBatch)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("jobs_unavailable", "stock sweep temporarily unavailable", http.StatusServiceUnavailable))
		return
	}
	writeJSONResponse(w, http.StatusOK, sweepJobResponse{
		Scanned:  result.Scanned,
		Notified: result.Notified,
		Skipped:  result.Skipped,
	})
}

// extractSettlementOrderID accepts either a Pub/Sub push envelope or a direct
// JSON body carrying the order ID.
func extractSettlementOrderID(body []byte) (string, error) {
	var envelope pubsubPushEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil {
		if orderID := strings.TrimSpace(envelope.Message.Attributes["orderId"]); orderID != "" {
			return orderID, nil
		}
		if len(envelope.Message.Data) > 0 {
			var msg services.SettlementJobMessage
			if err := json.Unmarshal(envelope.Message.Data, &msg); err == nil {
				if orderID := strings.TrimSpace(msg.OrderID); orderID != "" {
					return orderID, nil
				}
			}
		}
	}

	var req settlementJobRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", errors.New("request body must be valid JSON")
	}
	if orderID := strings.TrimSpace(req.OrderID); orderID != "" {
		return orderID, nil
	}
	return "", errors.New("orderId is required")
}
