package model

import "time"

// Package is read-only catalog data. The payment link is the absolute URL of
// the processor-hosted payment page for this package.
type Package struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Benefits    []string  `json:"benefits"`
	PriceMinor  int64     `json:"price_minor"`
	Currency    string    `json:"currency"`
	PaymentLink string    `json:"payment_link"`
	CreatedAt   time.Time `json:"created_at"`
}
