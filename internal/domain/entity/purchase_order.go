package entity

import "time"

// PurchaseOrder is the immutable record produced exactly once when a request
// is ordered. It snapshots the winning offer's commercial terms so later
// offer edits cannot rewrite history.
type PurchaseOrder struct {
	ID           string     `json:"id"`
	RequestID    string     `json:"request_id"`
	OfferID      string     `json:"offer_id"`
	OrderedBy    string     `json:"ordered_by"`
	Price        float64    `json:"price"`
	Currency     string     `json:"currency"`
	Coverage     []Coverage `json:"coverage"`
	DocumentPath string     `json:"document_path,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
