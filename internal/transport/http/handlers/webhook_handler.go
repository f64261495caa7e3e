package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upmarkt/backend/internal/pkg/metrics"
	reconcilesvc "github.com/upmarkt/backend/internal/services/reconcile"
	"github.com/upmarkt/backend/internal/transport/http/dto"
	httperrors "github.com/upmarkt/backend/internal/transport/http/errors"
)

const maxWebhookBodyBytes = 64 * 1024

// WebhookHandler is the inbound edge for payment-outcome notifications.
// Verification order is fixed: signature over the raw body first, schema
// second, state last. An unverified request never reaches the reconcile
// service.
type WebhookHandler struct {
	reconcile *reconcilesvc.Service
	secret    string
	skew      time.Duration
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time
}

func NewWebhookHandler(reconcile *reconcilesvc.Service, secret string, skew time.Duration, m *metrics.Metrics, log *zap.Logger) *WebhookHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WebhookHandler{
		reconcile: reconcile,
		secret:    secret,
		skew:      skew,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.reconcile == nil {
		writeInternal(w, "RECONCILE_SERVICE_UNAVAILABLE", "reconcile service is unavailable")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		h.metrics.ObserveWebhook("read_error")
		writeBadRequest(w, "VALIDATION_ERROR", "failed to read request body")
		return
	}

	if err := reconcilesvc.VerifySignature(body, r.Header.Get(reconcilesvc.SignatureHeader), h.secret, h.now(), h.skew); err != nil {
		h.metrics.ObserveWebhook("bad_signature")
		h.log.Warn("rejected unverified payment notification", zap.Error(err))
		writeBadRequest(w, "AUTHENTICITY_ERROR", "signature verification failed")
		return
	}

	var req dto.PaymentWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.metrics.ObserveWebhook("malformed")
		writeBadRequest(w, "VALIDATION_ERROR", "invalid notification payload")
		return
	}

	receipt, err := h.reconcile.Accept(r.Context(), reconcilesvc.Notification{
		CorrelationID: req.CorrelationID,
		Outcome:       req.Outcome,
		PaymentRef:    req.PaymentRef,
	})
	if err != nil {
		if errors.Is(err, reconcilesvc.ErrValidation) {
			h.metrics.ObserveWebhook("malformed")
			writeBadRequest(w, "VALIDATION_ERROR", "invalid notification payload")
			return
		}
		// A 500 makes the notifier retry; the accept path is idempotent.
		h.metrics.ObserveWebhook("error")
		h.log.Error("failed to process payment notification", zap.Error(err))
		writeInternal(w, "INTERNAL_ERROR", "failed to process notification")
		return
	}

	switch receipt.Result {
	case reconcilesvc.ReceiptUnknownCorrelation:
		// Acked, never retried. The log line is the operator's signal.
		h.metrics.ObserveWebhook("unknown_correlation")
		h.log.Warn("payment notification with unknown correlation id",
			zap.String("correlation_id", req.CorrelationID),
		)
	case reconcilesvc.ReceiptDuplicate:
		h.metrics.ObserveWebhook("duplicate")
		h.log.Info("duplicate payment notification absorbed",
			zap.Int64("purchase_id", receipt.Purchase.ID),
			zap.String("correlation_id", req.CorrelationID),
			zap.String("status", string(receipt.Purchase.Status)),
		)
	default:
		h.metrics.ObserveWebhook("applied")
	}

	httperrors.Write(w, http.StatusOK, dto.PaymentWebhookResponse{
		OK:        true,
		Result:    string(receipt.Result),
		Duplicate: receipt.Result == reconcilesvc.ReceiptDuplicate,
	})
}
