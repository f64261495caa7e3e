package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/upmarkt/backend/internal/pkg/metrics"
	authsvc "github.com/upmarkt/backend/internal/services/auth"
	checkoutsvc "github.com/upmarkt/backend/internal/services/checkout"
	"github.com/upmarkt/backend/internal/transport/http/dto"
	httperrors "github.com/upmarkt/backend/internal/transport/http/errors"
)

type CheckoutHandler struct {
	checkout *checkoutsvc.Service
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewCheckoutHandler(checkout *checkoutsvc.Service, m *metrics.Metrics, log *zap.Logger) *CheckoutHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CheckoutHandler{
		checkout: checkout,
		metrics:  m,
		log:      log,
	}
}

func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.checkout == nil {
		writeInternal(w, "CHECKOUT_SERVICE_UNAVAILABLE", "checkout service is unavailable")
		return
	}

	var req dto.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	target, err := h.checkout.Initiate(r.Context(), identity.UserID, req.PackageID)
	if err != nil {
		switch {
		case errors.Is(err, checkoutsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid checkout payload")
		case errors.Is(err, checkoutsvc.ErrPackageNotFound):
			writeNotFound(w, "PACKAGE_NOT_FOUND", "package not found")
		case errors.Is(err, checkoutsvc.ErrPaymentLinkConfig):
			// The pending row exists but cannot be paid for until the
			// package's payment link is fixed. Operators find these via the
			// log line; the row itself is the audit trail.
			h.log.Warn("checkout with unusable payment link",
				zap.Int64("user_id", identity.UserID),
				zap.Int64("package_id", req.PackageID),
				zap.Error(err),
			)
			writeInternal(w, "PAYMENT_LINK_MISCONFIGURED", "package cannot be purchased right now")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to initiate checkout")
		}
		return
	}

	h.metrics.ObserveCheckout()
	httperrors.Write(w, http.StatusOK, dto.CheckoutResponse{
		RedirectURL:   target.URL,
		PurchaseID:    target.PurchaseID,
		CorrelationID: target.CorrelationID,
		Status:        string(target.Status),
	})
}
