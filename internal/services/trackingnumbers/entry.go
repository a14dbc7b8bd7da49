package trackingnumbers

import (
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/BearBump/trackgen/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const entrySep = "%"

var trackingNumberRe = regexp.MustCompile(`^[0-9A-F]{8}[A-Z]{2}[A-Z]{2}$`)

// Старые записи писались без таймзоны (naive ISO-8601), читаем их как UTC.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func encodeEntry(e models.CacheEntry) string {
	return e.TrackingNumber + entrySep + e.CreatedAt.UTC().Format(time.RFC3339Nano)
}

func decodeEntry(raw string) (models.CacheEntry, error) {
	tn, ts, ok := strings.Cut(raw, entrySep)
	if !ok {
		return models.CacheEntry{}, errors.Wrap(ErrCacheCorruption, "missing separator")
	}
	if !trackingNumberRe.MatchString(tn) {
		return models.CacheEntry{}, errors.Wrapf(ErrCacheCorruption, "bad tracking number %q", tn)
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return models.CacheEntry{TrackingNumber: tn, CreatedAt: t.UTC()}, nil
		}
	}
	return models.CacheEntry{}, errors.Wrapf(ErrCacheCorruption, "bad created_at %q", ts)
}

// trackingNumber takes 8 chars of the first 12 upper-hex chars of id and appends both countries.
func trackingNumber(id uuid.UUID, origin, destination string) string {
	h := strings.ToUpper(hex.EncodeToString(id[:]))[:12]
	return h[:8] + origin + destination
}

// ValidTrackingNumber reports whether s has the issued shape: 8 hex chars and two country codes.
func ValidTrackingNumber(s string) bool {
	return trackingNumberRe.MatchString(s)
}
