package entity

import "time"

// DefaultCurrency is assumed when an offer payload leaves the currency blank.
const DefaultCurrency = "EUR"

// OfferStatus represents the lifecycle of a single offer
type OfferStatus string

const (
	OfferSubmitted   OfferStatus = "SUBMITTED"
	OfferShortlisted OfferStatus = "SHORTLISTED"
	OfferRecommended OfferStatus = "RECOMMENDED"
	OfferOrdered     OfferStatus = "ORDERED"
	OfferRejected    OfferStatus = "REJECTED"
)

var validOfferStatuses = map[OfferStatus]bool{
	OfferSubmitted:   true,
	OfferShortlisted: true,
	OfferRecommended: true,
	OfferOrdered:     true,
	OfferRejected:    true,
}

func (s OfferStatus) String() string {
	return string(s)
}

// IsValid returns true if the status is a valid offer status
func (s OfferStatus) IsValid() bool {
	return validOfferStatuses[s]
}

// Recommendable reports whether the offer may be promoted to RECOMMENDED.
// Ordered and rejected offers are out of the running.
func (s OfferStatus) Recommendable() bool {
	return s == OfferSubmitted || s == OfferShortlisted || s == OfferRecommended
}

// Coverage is one role-coverage claim of an offer
type Coverage struct {
	Role  string `json:"role"`
	Count int    `json:"count"`
}

// Offer represents a provider's bid against a request in its bidding phase
type Offer struct {
	ID           string      `json:"id"`
	RequestID    string      `json:"request_id"`
	Provider     string      `json:"provider"`
	Price        float64     `json:"price"`
	Currency     string      `json:"currency"`
	DeliveryDays int         `json:"delivery_days"`
	Coverage     []Coverage  `json:"coverage"`
	Notes        string      `json:"notes,omitempty"`
	Status       OfferStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
