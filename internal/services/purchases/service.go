package purchases

import (
	"context"
	"errors"
	"fmt"

	"github.com/upmarkt/backend/internal/domain/enums"
	pgrepo "github.com/upmarkt/backend/internal/repo/postgres"
)

var ErrValidation = errors.New("validation error")

type PurchaseStore interface {
	ListByUser(ctx context.Context, userID int64, statusFilter enums.PurchaseStatus) ([]pgrepo.PurchaseWithPackage, error)
}

// Service is the read side of the purchase subsystem: lock-free listings for
// history and dashboard views. A purchase can sit in pending here for as long
// as its notification takes to land.
type Service struct {
	store PurchaseStore
}

func NewService(store PurchaseStore) *Service {
	return &Service{store: store}
}

// History returns the user's purchases joined with their packages, most
// recent first. rawFilter narrows to one status when non-empty.
func (s *Service) History(ctx context.Context, userID int64, rawFilter string) ([]pgrepo.PurchaseWithPackage, error) {
	if s.store == nil {
		return nil, fmt.Errorf("purchase store is nil")
	}
	if userID <= 0 {
		return nil, ErrValidation
	}

	var filter enums.PurchaseStatus
	if rawFilter != "" {
		parsed, ok := enums.ParsePurchaseStatus(rawFilter)
		if !ok {
			return nil, ErrValidation
		}
		filter = parsed
	}

	items, err := s.store.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}

	return items, nil
}

// Dashboard is the active-packages view: completed purchases only.
func (s *Service) Dashboard(ctx context.Context, userID int64) ([]pgrepo.PurchaseWithPackage, error) {
	return s.History(ctx, userID, string(enums.PurchaseStatusCompleted))
}
