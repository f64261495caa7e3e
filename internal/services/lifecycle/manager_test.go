package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/upmarkt/backend/internal/domain/enums"
	pgrepo "github.com/upmarkt/backend/internal/repo/postgres"
)

// purchaseStoreStub mimics the repository CAS: the first terminal write wins,
// every later write returns the stored record with applied=false.
type purchaseStoreStub struct {
	mu      sync.Mutex
	record  pgrepo.PurchaseRecord
	calls   int
	failErr error
}

func (s *purchaseStoreStub) Finalize(_ context.Context, purchaseID int64, status enums.PurchaseStatus, paymentRef string) (pgrepo.PurchaseRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.failErr != nil {
		return pgrepo.PurchaseRecord{}, false, s.failErr
	}
	if s.record.ID != purchaseID {
		return pgrepo.PurchaseRecord{}, false, pgrepo.ErrPurchaseNotFound
	}
	if s.record.Status.Terminal() {
		return s.record, false, nil
	}

	s.record.Status = status
	if status == enums.PurchaseStatusCompleted {
		ref := paymentRef
		s.record.PaymentRef = &ref
	}
	return s.record, true, nil
}

func pendingPurchase(id int64) pgrepo.PurchaseRecord {
	return pgrepo.PurchaseRecord{
		ID:            id,
		UserID:        7,
		PackageID:     3,
		CorrelationID: "11111111-2222-3333-4444-555555555555",
		Status:        enums.PurchaseStatusPending,
	}
}

func TestApplyCompletesPendingPurchase(t *testing.T) {
	store := &purchaseStoreStub{record: pendingPurchase(42)}
	m := NewManager(store)

	res, err := m.Apply(context.Background(), pendingPurchase(42), Outcome{
		Status:     enums.PurchaseStatusCompleted,
		PaymentRef: "pay_001",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !res.Applied {
		t.Fatalf("expected transition to be applied")
	}
	if res.Purchase.Status != enums.PurchaseStatusCompleted {
		t.Fatalf("unexpected status: %s", res.Purchase.Status)
	}
	if res.Purchase.PaymentRef == nil || *res.Purchase.PaymentRef != "pay_001" {
		t.Fatalf("payment ref not recorded: %+v", res.Purchase.PaymentRef)
	}
}

func TestApplyFailsPendingPurchaseWithoutRef(t *testing.T) {
	store := &purchaseStoreStub{record: pendingPurchase(42)}
	m := NewManager(store)

	res, err := m.Apply(context.Background(), pendingPurchase(42), Outcome{
		Status: enums.PurchaseStatusFailed,
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !res.Applied {
		t.Fatalf("expected transition to be applied")
	}
	if res.Purchase.Status != enums.PurchaseStatusFailed {
		t.Fatalf("unexpected status: %s", res.Purchase.Status)
	}
	if res.Purchase.PaymentRef != nil {
		t.Fatalf("failed purchase must not carry a payment ref")
	}
}

func TestApplyDuplicateDeliveryIsAbsorbed(t *testing.T) {
	store := &purchaseStoreStub{record: pendingPurchase(42)}
	m := NewManager(store)

	outcome := Outcome{Status: enums.PurchaseStatusCompleted, PaymentRef: "pay_001"}

	first, err := m.Apply(context.Background(), pendingPurchase(42), outcome)
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if !first.Applied {
		t.Fatalf("first delivery should apply")
	}

	second, err := m.Apply(context.Background(), pendingPurchase(42), outcome)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if second.Applied {
		t.Fatalf("replay must not apply again")
	}
	if second.Purchase.Status != enums.PurchaseStatusCompleted {
		t.Fatalf("replay changed status: %s", second.Purchase.Status)
	}
	if second.Purchase.PaymentRef == nil || *second.Purchase.PaymentRef != "pay_001" {
		t.Fatalf("replay changed payment ref")
	}
}

func TestApplyConflictingOutcomeKeepsFirstWriter(t *testing.T) {
	store := &purchaseStoreStub{record: pendingPurchase(42)}
	m := NewManager(store)

	first, err := m.Apply(context.Background(), pendingPurchase(42), Outcome{
		Status: enums.PurchaseStatusFailed,
	})
	if err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if !first.Applied {
		t.Fatalf("first delivery should apply")
	}

	second, err := m.Apply(context.Background(), pendingPurchase(42), Outcome{
		Status:     enums.PurchaseStatusCompleted,
		PaymentRef: "pay_002",
	})
	if err != nil {
		t.Fatalf("conflicting apply: %v", err)
	}
	if second.Applied {
		t.Fatalf("conflicting delivery must not overwrite terminal state")
	}
	if second.Purchase.Status != enums.PurchaseStatusFailed {
		t.Fatalf("terminal status changed: %s", second.Purchase.Status)
	}
}

func TestApplyConcurrentDeliveriesApplyExactlyOnce(t *testing.T) {
	store := &purchaseStoreStub{record: pendingPurchase(42)}
	m := NewManager(store)

	outcomes := []Outcome{
		{Status: enums.PurchaseStatusCompleted, PaymentRef: "pay_a"},
		{Status: enums.PurchaseStatusFailed},
		{Status: enums.PurchaseStatusCompleted, PaymentRef: "pay_b"},
		{Status: enums.PurchaseStatusFailed},
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for _, outcome := range outcomes {
		wg.Add(1)
		go func(o Outcome) {
			defer wg.Done()
			res, err := m.Apply(context.Background(), pendingPurchase(42), o)
			if err != nil {
				t.Errorf("apply: %v", err)
				return
			}
			if res.Applied {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}(outcome)
	}
	wg.Wait()

	if applied != 1 {
		t.Fatalf("expected exactly one applied transition, got %d", applied)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if !store.record.Status.Terminal() {
		t.Fatalf("record not terminal after concurrent deliveries")
	}
}

func TestApplyRejectsMalformedOutcomes(t *testing.T) {
	store := &purchaseStoreStub{record: pendingPurchase(42)}
	m := NewManager(store)

	cases := []struct {
		name     string
		purchase pgrepo.PurchaseRecord
		outcome  Outcome
	}{
		{"zero purchase id", pgrepo.PurchaseRecord{}, Outcome{Status: enums.PurchaseStatusFailed}},
		{"non-terminal status", pendingPurchase(42), Outcome{Status: enums.PurchaseStatusPending}},
		{"completed without ref", pendingPurchase(42), Outcome{Status: enums.PurchaseStatusCompleted}},
		{"failed with ref", pendingPurchase(42), Outcome{Status: enums.PurchaseStatusFailed, PaymentRef: "pay_x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := m.Apply(context.Background(), tc.purchase, tc.outcome); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
	if store.calls != 0 {
		t.Fatalf("store must not be touched on validation failure, got %d calls", store.calls)
	}
}

func TestApplyPropagatesStoreErrors(t *testing.T) {
	storeErr := errors.New("connection reset")
	store := &purchaseStoreStub{record: pendingPurchase(42), failErr: storeErr}
	m := NewManager(store)

	_, err := m.Apply(context.Background(), pendingPurchase(42), Outcome{
		Status: enums.PurchaseStatusFailed,
	})
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
