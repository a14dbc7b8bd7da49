package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Имена полей запроса (используются в ошибках валидации и в транспорте).
const (
	FieldOriginCountry      = "origin_country"
	FieldDestinationCountry = "destination_country"
	FieldWeight             = "weight"
	FieldCustomerID         = "customer_id"
	FieldCustomerName       = "customer_name"
	FieldCustomerSlug       = "customer_slug"
)

// RequestFields lists the request fields in the order they are validated and reported.
var RequestFields = []string{
	FieldOriginCountry,
	FieldDestinationCountry,
	FieldWeight,
	FieldCustomerID,
	FieldCustomerName,
	FieldCustomerSlug,
}

// RawTrackingRequest is what a transport hands to the validator: untyped strings,
// keyed by field name. A field absent from the map was not sent at all.
type RawTrackingRequest map[string]string

// TrackingRequest is a validated request. Build it with validation.Validate.
type TrackingRequest struct {
	OriginCountry      string
	DestinationCountry string
	Weight             decimal.Decimal
	CustomerID         uuid.UUID
	CustomerName       string
	CustomerSlug       string
}

// IssuedTracking is the result of a generation (or of an idempotent replay).
type IssuedTracking struct {
	TrackingNumber string
	CreatedAt      time.Time
	// Replayed is true when the value came from the cache rather than a fresh generation.
	Replayed bool
}

// CacheEntry is the value stored under an idempotency key.
type CacheEntry struct {
	TrackingNumber string
	CreatedAt      time.Time
}
