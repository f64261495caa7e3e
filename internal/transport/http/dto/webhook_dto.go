package dto

type PaymentWebhookRequest struct {
	CorrelationID string `json:"correlation_id"`
	Outcome       string `json:"outcome"`
	PaymentRef    string `json:"payment_ref,omitempty"`
}

type PaymentWebhookResponse struct {
	OK        bool   `json:"ok"`
	Result    string `json:"result"`
	Duplicate bool   `json:"duplicate,omitempty"`
}
