package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brewcoin/api/internal/platform/httpx"
	"github.com/brewcoin/api/internal/services"
)

// ClientHandlers serves loyalty account reads.
type ClientHandlers struct {
	clients services.ClientService
}

// NewClientHandlers constructs client handlers.
func NewClientHandlers(clients services.ClientService) *ClientHandlers {
	return &ClientHandlers{clients: clients}
}

// Routes registers loyalty endpoints under the provided router.
func (h *ClientHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{clientID}/loyalty", h.loyalty)
}

func (h *ClientHandlers) loyalty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h == nil || h.clients == nil {
		httpx.WriteError(ctx, w, httpx.NewError("clients_unavailable", "client service unavailable", http.StatusServiceUnavailable))
		return
	}

	snapshot, err := h.clients.GetLoyalty(ctx, chi.URLParam(r, "clientID"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrClientInvalidInput):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		case errors.Is(err, services.ErrClientNotFound):
			httpx.WriteError(ctx, w, httpx.NewError("client_not_found", "client not found", http.StatusNotFound))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("clients_unavailable", "client service unavailable", http.StatusServiceUnavailable))
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, loyaltyPayload{
		ClientID:            snapshot.ClientID,
		CoinBalance:         snapshot.CoinBalance,
		LifetimeSpend:       snapshot.LifetimeSpend,
		OrderCount:          snapshot.OrderCount,
		DiscountTierPercent: snapshot.DiscountTierPercent,
	})
}
