package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/upmarkt/backend/internal/domain/enums"
	pgrepo "github.com/upmarkt/backend/internal/repo/postgres"
	"github.com/upmarkt/backend/internal/services/lifecycle"
)

var ErrValidation = errors.New("validation error")

type PurchaseStore interface {
	FindByCorrelationID(ctx context.Context, correlationID string) (pgrepo.PurchaseRecord, error)
}

type Lifecycle interface {
	Apply(ctx context.Context, purchase pgrepo.PurchaseRecord, outcome lifecycle.Outcome) (lifecycle.Result, error)
}

// Notification is the schema enforced at this boundary. Signature
// verification happens earlier, against the raw body, in the HTTP handler;
// nothing unverified reaches this service.
type Notification struct {
	CorrelationID string
	Outcome       string
	PaymentRef    string
}

type ReceiptResult string

const (
	// ReceiptApplied: the outcome finalized the purchase.
	ReceiptApplied ReceiptResult = "applied"
	// ReceiptDuplicate: the purchase was already terminal. Reported to the
	// notifier as success so it stops retrying.
	ReceiptDuplicate ReceiptResult = "duplicate"
	// ReceiptUnknownCorrelation: no purchase carries this correlation id.
	// Acked rather than error'd: a reference that resolves to nothing today
	// will resolve to nothing on every retry.
	ReceiptUnknownCorrelation ReceiptResult = "unknown_correlation"
)

type Receipt struct {
	Result   ReceiptResult
	Purchase pgrepo.PurchaseRecord
}

type Service struct {
	purchases PurchaseStore
	manager   Lifecycle
}

func NewService(purchases PurchaseStore, manager Lifecycle) *Service {
	return &Service{
		purchases: purchases,
		manager:   manager,
	}
}

// Accept resolves a verified notification to its purchase and drives the
// lifecycle transition. Safe under exact re-delivery and under concurrent
// delivery of conflicting outcomes: at most one terminal transition is ever
// applied per purchase, every other delivery gets a duplicate receipt.
func (s *Service) Accept(ctx context.Context, in Notification) (Receipt, error) {
	if s.purchases == nil || s.manager == nil {
		return Receipt{}, fmt.Errorf("reconcile dependencies are not configured")
	}

	correlationID := strings.TrimSpace(in.CorrelationID)
	if correlationID == "" {
		return Receipt{}, ErrValidation
	}
	// Correlation ids are uuids minted by checkout. Anything else can never
	// match a purchase and must not reach the uuid column, where the failed
	// cast would read as a retryable storage error.
	if _, err := uuid.Parse(correlationID); err != nil {
		return Receipt{}, ErrValidation
	}

	status, ok := parseOutcome(in.Outcome)
	if !ok {
		return Receipt{}, ErrValidation
	}

	paymentRef := strings.TrimSpace(in.PaymentRef)
	if status == enums.PurchaseStatusCompleted && paymentRef == "" {
		return Receipt{}, ErrValidation
	}

	purchase, err := s.purchases.FindByCorrelationID(ctx, correlationID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPurchaseNotFound) {
			// Purchases are only ever created by checkout; an unmatched token
			// is logged upstream and acknowledged, never materialized here.
			return Receipt{Result: ReceiptUnknownCorrelation}, nil
		}
		return Receipt{}, fmt.Errorf("resolve correlation id: %w", err)
	}

	outcome := lifecycle.Outcome{Status: status}
	if status == enums.PurchaseStatusCompleted {
		outcome.PaymentRef = paymentRef
	}

	result, err := s.manager.Apply(ctx, purchase, outcome)
	if err != nil {
		if errors.Is(err, lifecycle.ErrValidation) {
			return Receipt{}, ErrValidation
		}
		return Receipt{}, err
	}

	receipt := Receipt{Result: ReceiptApplied, Purchase: result.Purchase}
	if !result.Applied {
		receipt.Result = ReceiptDuplicate
	}
	return receipt, nil
}

func parseOutcome(raw string) (enums.PurchaseStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "paid", "success":
		return enums.PurchaseStatusCompleted, true
	case "failed", "cancelled", "canceled", "expired":
		return enums.PurchaseStatusFailed, true
	default:
		return "", false
	}
}
