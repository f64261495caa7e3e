package dto

import "time"

type PurchasePayload struct {
	ID         int64          `json:"id"`
	Status     string         `json:"status"`
	PaymentRef string         `json:"payment_ref,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	Package    PackagePayload `json:"package"`
}

type PurchaseListResponse struct {
	Purchases []PurchasePayload `json:"purchases"`
}
