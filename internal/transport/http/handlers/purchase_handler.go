package handlers

import (
	"errors"
	"net/http"

	pgrepo "github.com/upmarkt/backend/internal/repo/postgres"
	authsvc "github.com/upmarkt/backend/internal/services/auth"
	purchasesvc "github.com/upmarkt/backend/internal/services/purchases"
	"github.com/upmarkt/backend/internal/transport/http/dto"
	httperrors "github.com/upmarkt/backend/internal/transport/http/errors"
)

type PurchaseHandler struct {
	purchases *purchasesvc.Service
}

func NewPurchaseHandler(purchases *purchasesvc.Service) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases}
}

func (h *PurchaseHandler) History(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.purchases == nil {
		writeInternal(w, "PURCHASES_SERVICE_UNAVAILABLE", "purchases service is unavailable")
		return
	}

	items, err := h.purchases.History(r.Context(), identity.UserID, r.URL.Query().Get("status"))
	if err != nil {
		if errors.Is(err, purchasesvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid status filter")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to load purchases")
		return
	}

	httperrors.Write(w, http.StatusOK, toPurchaseList(items))
}

func (h *PurchaseHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	identity, ok := authsvc.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "UNAUTHORIZED", "authentication required")
		return
	}
	if h.purchases == nil {
		writeInternal(w, "PURCHASES_SERVICE_UNAVAILABLE", "purchases service is unavailable")
		return
	}

	items, err := h.purchases.Dashboard(r.Context(), identity.UserID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to load dashboard")
		return
	}

	httperrors.Write(w, http.StatusOK, toPurchaseList(items))
}

func toPurchaseList(items []pgrepo.PurchaseWithPackage) dto.PurchaseListResponse {
	payload := dto.PurchaseListResponse{Purchases: make([]dto.PurchasePayload, 0, len(items))}
	for _, item := range items {
		entry := dto.PurchasePayload{
			ID:        item.Purchase.ID,
			Status:    string(item.Purchase.Status),
			CreatedAt: item.Purchase.CreatedAt,
			Package: dto.PackagePayload{
				ID:          item.Package.ID,
				Title:       item.Package.Title,
				Description: item.Package.Description,
				Benefits:    item.Package.Benefits,
				PriceMinor:  item.Package.PriceMinor,
				Currency:    item.Package.Currency,
				CreatedAt:   item.Package.CreatedAt,
			},
		}
		if item.Purchase.PaymentRef != nil {
			entry.PaymentRef = *item.Purchase.PaymentRef
		}
		payload.Purchases = append(payload.Purchases, entry)
	}
	return payload
}
