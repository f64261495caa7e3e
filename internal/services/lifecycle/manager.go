package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/upmarkt/backend/internal/domain/enums"
	pgrepo "github.com/upmarkt/backend/internal/repo/postgres"
)

var ErrValidation = errors.New("validation error")

// PurchaseStore is the single mutation point for purchase records. Finalize
// must apply the terminal transition atomically against the current status and
// report applied=false when the record was already terminal.
type PurchaseStore interface {
	Finalize(ctx context.Context, purchaseID int64, status enums.PurchaseStatus, paymentRef string) (pgrepo.PurchaseRecord, bool, error)
}

// Outcome is a verified payment result for one purchase. PaymentRef is the
// processor's payment reference and is required exactly when the outcome is
// completed.
type Outcome struct {
	Status     enums.PurchaseStatus
	PaymentRef string
}

type Result struct {
	Purchase pgrepo.PurchaseRecord
	// Applied is false when the purchase was already finalized. That is the
	// expected shape of a duplicate or late delivery, not a failure: whichever
	// outcome landed first stays.
	Applied bool
}

type Manager struct {
	store PurchaseStore
}

func NewManager(store PurchaseStore) *Manager {
	return &Manager{store: store}
}

// Apply drives pending → completed|failed. Terminal states are never left:
// once a record is finalized every later outcome, identical or conflicting,
// comes back as Applied=false with the stored record untouched.
func (m *Manager) Apply(ctx context.Context, purchase pgrepo.PurchaseRecord, outcome Outcome) (Result, error) {
	if m.store == nil {
		return Result{}, fmt.Errorf("purchase store is nil")
	}
	if purchase.ID <= 0 {
		return Result{}, ErrValidation
	}
	if !outcome.Status.Terminal() {
		return Result{}, ErrValidation
	}

	ref := strings.TrimSpace(outcome.PaymentRef)
	if outcome.Status == enums.PurchaseStatusCompleted && ref == "" {
		return Result{}, ErrValidation
	}
	if outcome.Status == enums.PurchaseStatusFailed && ref != "" {
		return Result{}, ErrValidation
	}

	record, applied, err := m.store.Finalize(ctx, purchase.ID, outcome.Status, ref)
	if err != nil {
		return Result{}, fmt.Errorf("finalize purchase: %w", err)
	}

	if !applied && !record.Status.Terminal() {
		return Result{}, fmt.Errorf("purchase %d did not reach a terminal status", purchase.ID)
	}

	return Result{Purchase: record, Applied: applied}, nil
}
