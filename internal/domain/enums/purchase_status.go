package enums

import "strings"

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusFailed    PurchaseStatus = "failed"
)

// Terminal reports whether no further transition is permitted from s.
func (s PurchaseStatus) Terminal() bool {
	return s == PurchaseStatusCompleted || s == PurchaseStatusFailed
}

func ParsePurchaseStatus(raw string) (PurchaseStatus, bool) {
	switch PurchaseStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case PurchaseStatusPending:
		return PurchaseStatusPending, true
	case PurchaseStatusCompleted:
		return PurchaseStatusCompleted, true
	case PurchaseStatusFailed:
		return PurchaseStatusFailed, true
	default:
		return "", false
	}
}
