package trackingnumbers

import (
	"strings"

	"github.com/BearBump/trackgen/internal/models"
)

const keyPrefix = "tracking"

// CacheKey derives the idempotency key. customer_name is appended only when includeName is set;
// as free text it is always the last segment.
func CacheKey(req models.TrackingRequest, includeName bool) string {
	parts := []string{
		keyPrefix,
		req.OriginCountry,
		req.DestinationCountry,
		req.Weight.StringFixed(3),
		req.CustomerID.String(),
		req.CustomerSlug,
	}
	if includeName {
		parts = append(parts, req.CustomerName)
	}
	return strings.Join(parts, "_")
}
