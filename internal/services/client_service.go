package services

import (
	"context"
	"errors"
	"strings"

	"github.com/brewcoin/api/internal/repositories"
)

var (
	// ErrClientInvalidInput indicates a missing or malformed client ID.
	ErrClientInvalidInput = errors.New("client: invalid input")
	// ErrClientNotFound indicates the loyalty account does not exist.
	ErrClientNotFound = errors.New("client: not found")
	// ErrClientUnavailable indicates client dependencies are currently unavailable.
	ErrClientUnavailable = errors.New("client: unavailable")
)

// ClientServiceDeps wires the dependencies required by the client service.
type ClientServiceDeps struct {
	Clients repositories.ClientRepository
}

type clientService struct {
	clients repositories.ClientRepository
}

// NewClientService constructs a ClientService validating required dependencies.
func NewClientService(deps ClientServiceDeps) (ClientService, error) {
	if deps.Clients == nil {
		return nil, errors.New("client service: client repository is required")
	}
	return &clientService{clients: deps.Clients}, nil
}

// GetLoyalty returns the client-facing loyalty account view.
func (s *clientService) GetLoyalty(ctx context.Context, clientID string) (LoyaltySnapshot, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return LoyaltySnapshot{}, ErrClientInvalidInput
	}

	client, err := s.clients.Get(ctx, clientID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) {
			if repoErr.IsNotFound() {
				return LoyaltySnapshot{}, ErrClientNotFound
			}
		}
		return LoyaltySnapshot{}, ErrClientUnavailable
	}
	return client.Snapshot(), nil
}
