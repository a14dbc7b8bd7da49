package messages

import "time"

// TrackingNumberIssued is published once per fresh generation (replays are not published).
type TrackingNumberIssued struct {
	TrackingNumber     string    `json:"tracking_number"`
	CreatedAt          time.Time `json:"created_at"`
	OriginCountry      string    `json:"origin_country"`
	DestinationCountry string    `json:"destination_country"`
	CustomerID         string    `json:"customer_id"`
	CustomerSlug       string    `json:"customer_slug"`
	// Repaired is set when the number replaced a corrupted cache entry.
	Repaired bool `json:"repaired,omitempty"`
}
