package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/upmarkt/backend/internal/domain/enums"
	"github.com/upmarkt/backend/internal/pkg/metrics"
	pgrepo "github.com/upmarkt/backend/internal/repo/postgres"
	"github.com/upmarkt/backend/internal/services/lifecycle"
	reconcilesvc "github.com/upmarkt/backend/internal/services/reconcile"
)

const (
	testWebhookSecret = "whsec_test"
	webhookTestCID    = "a4d81f20-6c3e-4b7a-9f52-8e0d1c2b3a45"
)

// webhookPurchaseStub backs both the correlation lookup and the finalize CAS
// so the handler test exercises the real reconcile and lifecycle code.
type webhookPurchaseStub struct {
	mu     sync.Mutex
	record pgrepo.PurchaseRecord
	exists bool
}

func (s *webhookPurchaseStub) FindByCorrelationID(_ context.Context, correlationID string) (pgrepo.PurchaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exists || s.record.CorrelationID != correlationID {
		return pgrepo.PurchaseRecord{}, pgrepo.ErrPurchaseNotFound
	}
	return s.record, nil
}

func (s *webhookPurchaseStub) Finalize(_ context.Context, purchaseID int64, status enums.PurchaseStatus, paymentRef string) (pgrepo.PurchaseRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.exists || s.record.ID != purchaseID {
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

func newWebhookHandlerForTest(store *webhookPurchaseStub, now time.Time) *WebhookHandler {
	manager := lifecycle.NewManager(store)
	svc := reconcilesvc.NewService(store, manager)
	h := NewWebhookHandler(svc, testWebhookSecret, 5*time.Minute, metrics.New(), nil)
	h.now = func() time.Time { return now }
	return h
}

func signedWebhookRequest(t *testing.T, payload any, secret string, at time.Time) *http.Request {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(reconcilesvc.SignatureHeader, reconcilesvc.Sign(body, secret, at))
	return req
}

func decodeWebhookResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func TestWebhookAppliesCompletion(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &webhookPurchaseStub{
		record: pgrepo.PurchaseRecord{ID: 5, CorrelationID: webhookTestCID, Status: enums.PurchaseStatusPending},
		exists: true,
	}
	h := newWebhookHandlerForTest(store, now)

	rec := httptest.NewRecorder()
	h.Handle(rec, signedWebhookRequest(t, map[string]string{
		"correlation_id": webhookTestCID,
		"outcome":        "completed",
		"payment_ref":    "pay_5",
	}, testWebhookSecret, now))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
	payload := decodeWebhookResponse(t, rec)
	if payload["result"] != "applied" {
		t.Fatalf("unexpected result: %v", payload)
	}
	if store.record.Status != enums.PurchaseStatusCompleted {
		t.Fatalf("purchase not completed: %s", store.record.Status)
	}
	if store.record.PaymentRef == nil || *store.record.PaymentRef != "pay_5" {
		t.Fatalf("payment ref not set")
	}
}

func TestWebhookReplayIsAcknowledgedAsDuplicate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &webhookPurchaseStub{
		record: pgrepo.PurchaseRecord{ID: 5, CorrelationID: webhookTestCID, Status: enums.PurchaseStatusPending},
		exists: true,
	}
	h := newWebhookHandlerForTest(store, now)

	body := map[string]string{
		"correlation_id": webhookTestCID,
		"outcome":        "completed",
		"payment_ref":    "pay_5",
	}

	first := httptest.NewRecorder()
	h.Handle(first, signedWebhookRequest(t, body, testWebhookSecret, now))
	if first.Code != http.StatusOK {
		t.Fatalf("first delivery: %d", first.Code)
	}

	second := httptest.NewRecorder()
	h.Handle(second, signedWebhookRequest(t, body, testWebhookSecret, now))
	if second.Code != http.StatusOK {
		t.Fatalf("replay must be acked with 200, got %d", second.Code)
	}
	payload := decodeWebhookResponse(t, second)
	if payload["result"] != "duplicate" || payload["duplicate"] != true {
		t.Fatalf("replay not reported as duplicate: %v", payload)
	}
	if store.record.Status != enums.PurchaseStatusCompleted {
		t.Fatalf("replay changed state: %s", store.record.Status)
	}
}

func TestWebhookConflictingOutcomeDoesNotOverwrite(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &webhookPurchaseStub{
		record: pgrepo.PurchaseRecord{ID: 5, CorrelationID: webhookTestCID, Status: enums.PurchaseStatusPending},
		exists: true,
	}
	h := newWebhookHandlerForTest(store, now)

	first := httptest.NewRecorder()
	h.Handle(first, signedWebhookRequest(t, map[string]string{
		"correlation_id": webhookTestCID,
		"outcome":        "failed",
	}, testWebhookSecret, now))
	if first.Code != http.StatusOK {
		t.Fatalf("first delivery: %d", first.Code)
	}

	second := httptest.NewRecorder()
	h.Handle(second, signedWebhookRequest(t, map[string]string{
		"correlation_id": webhookTestCID,
		"outcome":        "completed",
		"payment_ref":    "pay_late",
	}, testWebhookSecret, now))
	if second.Code != http.StatusOK {
		t.Fatalf("late conflicting delivery must still be acked, got %d", second.Code)
	}
	if store.record.Status != enums.PurchaseStatusFailed {
		t.Fatalf("first-writer outcome was overwritten: %s", store.record.Status)
	}
	if store.record.PaymentRef != nil {
		t.Fatalf("failed purchase gained a payment ref")
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &webhookPurchaseStub{
		record: pgrepo.PurchaseRecord{ID: 5, CorrelationID: webhookTestCID, Status: enums.PurchaseStatusPending},
		exists: true,
	}
	h := newWebhookHandlerForTest(store, now)

	rec := httptest.NewRecorder()
	h.Handle(rec, signedWebhookRequest(t, map[string]string{
		"correlation_id": webhookTestCID,
		"outcome":        "completed",
		"payment_ref":    "pay_5",
	}, "whsec_wrong", now))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unverified request must be rejected, got %d", rec.Code)
	}
	if store.record.Status != enums.PurchaseStatusPending {
		t.Fatalf("unverified request touched state: %s", store.record.Status)
	}
}

func TestWebhookRejectsStaleSignature(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &webhookPurchaseStub{
		record: pgrepo.PurchaseRecord{ID: 5, CorrelationID: webhookTestCID, Status: enums.PurchaseStatusPending},
		exists: true,
	}
	h := newWebhookHandlerForTest(store, now)

	rec := httptest.NewRecorder()
	h.Handle(rec, signedWebhookRequest(t, map[string]string{
		"correlation_id": webhookTestCID,
		"outcome":        "completed",
		"payment_ref":    "pay_5",
	}, testWebhookSecret, now.Add(-time.Hour)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("stale signature must be rejected, got %d", rec.Code)
	}
}

func TestWebhookAcksUnknownCorrelation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := newWebhookHandlerForTest(&webhookPurchaseStub{}, now)

	rec := httptest.NewRecorder()
	h.Handle(rec, signedWebhookRequest(t, map[string]string{
		"correlation_id": "7c2f8d14-5b6e-4a90-b3d7-0e1f2a3c4d5e",
		"outcome":        "completed",
		"payment_ref":    "pay_x",
	}, testWebhookSecret, now))

	if rec.Code != http.StatusOK {
		t.Fatalf("unknown correlation must be acked, got %d", rec.Code)
	}
	payload := decodeWebhookResponse(t, rec)
	if payload["result"] != "unknown_correlation" {
		t.Fatalf("unexpected result: %v", payload)
	}
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := newWebhookHandlerForTest(&webhookPurchaseStub{}, now)

	body := []byte("{not json")
	req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
	req.Header.Set(reconcilesvc.SignatureHeader, reconcilesvc.Sign(body, testWebhookSecret, now))

	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed but signed payload must be 400, got %d", rec.Code)
	}
}

func TestWebhookMissingOutcomeFields(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := newWebhookHandlerForTest(&webhookPurchaseStub{
		record: pgrepo.PurchaseRecord{ID: 5, CorrelationID: webhookTestCID, Status: enums.PurchaseStatusPending},
		exists: true,
	}, now)

	for i, body := range []map[string]string{
		{"outcome": "completed", "payment_ref": "pay_5"},
		{"correlation_id": webhookTestCID, "outcome": "refunded"},
		{"correlation_id": webhookTestCID, "outcome": "completed"},
	} {
		rec := httptest.NewRecorder()
		h.Handle(rec, signedWebhookRequest(t, body, testWebhookSecret, now))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("case %d: expected 400, got %d", i, rec.Code)
		}
	}
}

func TestWebhookRejectsNonUUIDCorrelationToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &webhookPurchaseStub{
		record: pgrepo.PurchaseRecord{ID: 5, CorrelationID: webhookTestCID, Status: enums.PurchaseStatusPending},
		exists: true,
	}
	h := newWebhookHandlerForTest(store, now)

	// A correctly signed token that was never minted by checkout, e.g. a
	// session reference from some other product. A 500 here would have the
	// notifier retrying a reference that can never resolve; it must be
	// rejected as malformed instead.
	rec := httptest.NewRecorder()
	h.Handle(rec, signedWebhookRequest(t, map[string]string{
		"correlation_id": "cs_live_a1b2c3d4",
		"outcome":        "completed",
		"payment_ref":    "pay_5",
	}, testWebhookSecret, now))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-uuid token must be 400, got %d body=%s", rec.Code, rec.Body.String())
	}
	if store.record.Status != enums.PurchaseStatusPending {
		t.Fatalf("purchase state must be untouched, got %s", store.record.Status)
	}
}

func TestWebhookStorageFailureSignalsRetry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := reconcilesvc.NewService(failingLookup{}, lifecycle.NewManager(&webhookPurchaseStub{}))
	h := NewWebhookHandler(svc, testWebhookSecret, 5*time.Minute, metrics.New(), nil)
	h.now = func() time.Time { return now }

	rec := httptest.NewRecorder()
	h.Handle(rec, signedWebhookRequest(t, map[string]string{
		"correlation_id": webhookTestCID,
		"outcome":        "failed",
	}, testWebhookSecret, now))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("storage failure must surface 500 so the notifier retries, got %d", rec.Code)
	}
}

type failingLookup struct{}

func (failingLookup) FindByCorrelationID(context.Context, string) (pgrepo.PurchaseRecord, error) {
	return pgrepo.PurchaseRecord{}, fmt.Errorf("connection refused")
}
