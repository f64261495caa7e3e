package dto

import "time"

type PackagePayload struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Benefits    []string  `json:"benefits"`
	PriceMinor  int64     `json:"price_minor"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
}

type PackageListResponse struct {
	Packages []PackagePayload `json:"packages"`
}
