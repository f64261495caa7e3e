package purchases

import (
	"context"
	"errors"
	"testing"

	"github.com/upmarkt/backend/internal/domain/enums"
	pgrepo "github.com/upmarkt/backend/internal/repo/postgres"
)

type listStoreStub struct {
	items      []pgrepo.PurchaseWithPackage
	err        error
	lastUser   int64
	lastFilter enums.PurchaseStatus
	calls      int
}

func (s *listStoreStub) ListByUser(_ context.Context, userID int64, statusFilter enums.PurchaseStatus) ([]pgrepo.PurchaseWithPackage, error) {
	s.calls++
	s.lastUser = userID
	s.lastFilter = statusFilter
	if s.err != nil {
		return nil, s.err
	}
	return s.items, nil
}

func TestHistoryReturnsAllStatuses(t *testing.T) {
	store := &listStoreStub{items: []pgrepo.PurchaseWithPackage{
		{Purchase: pgrepo.PurchaseRecord{ID: 3, Status: enums.PurchaseStatusPending}},
		{Purchase: pgrepo.PurchaseRecord{ID: 2, Status: enums.PurchaseStatusCompleted}},
		{Purchase: pgrepo.PurchaseRecord{ID: 1, Status: enums.PurchaseStatusFailed}},
	}}
	svc := NewService(store)

	items, err := svc.History(context.Background(), 7, "")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if store.lastUser != 7 {
		t.Fatalf("queried wrong user: %d", store.lastUser)
	}
	if store.lastFilter != "" {
		t.Fatalf("unfiltered history must not narrow by status, got %q", store.lastFilter)
	}
}

func TestHistoryAppliesStatusFilter(t *testing.T) {
	store := &listStoreStub{}
	svc := NewService(store)

	if _, err := svc.History(context.Background(), 7, "failed"); err != nil {
		t.Fatalf("history: %v", err)
	}
	if store.lastFilter != enums.PurchaseStatusFailed {
		t.Fatalf("filter not forwarded, got %q", store.lastFilter)
	}
}

func TestHistoryRejectsUnknownFilter(t *testing.T) {
	store := &listStoreStub{}
	svc := NewService(store)

	if _, err := svc.History(context.Background(), 7, "refunded"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if store.calls != 0 {
		t.Fatalf("store must not be queried for invalid filters")
	}
}

func TestHistoryRejectsInvalidUser(t *testing.T) {
	svc := NewService(&listStoreStub{})

	if _, err := svc.History(context.Background(), 0, ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDashboardShowsCompletedOnly(t *testing.T) {
	store := &listStoreStub{}
	svc := NewService(store)

	if _, err := svc.Dashboard(context.Background(), 7); err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if store.lastFilter != enums.PurchaseStatusCompleted {
		t.Fatalf("dashboard must filter to completed, got %q", store.lastFilter)
	}
}
