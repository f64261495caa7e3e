package handlers

import (
	"net/http"

	"github.com/upmarkt/backend/internal/domain/model"
	catalogsvc "github.com/upmarkt/backend/internal/services/catalog"
	"github.com/upmarkt/backend/internal/transport/http/dto"
	httperrors "github.com/upmarkt/backend/internal/transport/http/errors"
)

type PackageHandler struct {
	catalog *catalogsvc.Service
}

func NewPackageHandler(catalog *catalogsvc.Service) *PackageHandler {
	return &PackageHandler{catalog: catalog}
}

func (h *PackageHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		writeInternal(w, "CATALOG_SERVICE_UNAVAILABLE", "catalog service is unavailable")
		return
	}

	packages, err := h.catalog.List(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to load packages")
		return
	}

	payload := dto.PackageListResponse{Packages: make([]dto.PackagePayload, 0, len(packages))}
	for _, pkg := range packages {
		payload.Packages = append(payload.Packages, toPackagePayload(pkg))
	}

	httperrors.Write(w, http.StatusOK, payload)
}

// toPackagePayload omits the raw payment link: clients get a redirect
// target from checkout, never the bare template.
func toPackagePayload(pkg model.Package) dto.PackagePayload {
	return dto.PackagePayload{
		ID:          pkg.ID,
		Title:       pkg.Title,
		Description: pkg.Description,
		Benefits:    pkg.Benefits,
		PriceMinor:  pkg.PriceMinor,
		Currency:    pkg.Currency,
		CreatedAt:   pkg.CreatedAt,
	}
}
