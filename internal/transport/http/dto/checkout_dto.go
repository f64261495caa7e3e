package dto

type CheckoutRequest struct {
	PackageID int64 `json:"package_id"`
}

type CheckoutResponse struct {
	RedirectURL   string `json:"redirect_url"`
	PurchaseID    int64  `json:"purchase_id"`
	CorrelationID string `json:"correlation_id"`
	Status        string `json:"status"`
}
