package trackingnumbers

import (
	"testing"
	"time"

	"github.com/BearBump/trackgen/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestTrackingNumber(t *testing.T) {
	id := uuid.MustParse("3f2a9c1e-7b4d-4e8a-9c1f-2b3d4e5f6a7b")
	require.Equal(t, "3F2A9C1EUSGB", trackingNumber(id, "US", "GB"))
}

func TestEntry_RoundTrip(t *testing.T) {
	e := models.CacheEntry{TrackingNumber: testTN, CreatedAt: testNow}
	require.Equal(t, testValue, encodeEntry(e))

	got, err := decodeEntry(testValue)
	require.NoError(t, err)
	require.Equal(t, e, got)
}

func TestDecodeEntry_NaiveTimestampIsUTC(t *testing.T) {
	got, err := decodeEntry("3F2A9C1EMYID%2024-03-05T10:11:12.345678")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 5, 10, 11, 12, 345678000, time.UTC), got.CreatedAt)
}

func TestDecodeEntry_OffsetNormalizedToUTC(t *testing.T) {
	got, err := decodeEntry("3F2A9C1EMYID%2024-03-05T10:11:12+03:00")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 5, 7, 11, 12, 0, time.UTC), got.CreatedAt)
}

func TestDecodeEntry_Corrupted(t *testing.T) {
	for _, raw := range []string{
		"",
		"3F2A9C1EMYID",
		"3F2A9C1EMYID%",
		"%2024-03-05T10:11:12Z",
		"3F2A9C1EMY%2024-03-05T10:11:12Z",
		"3F2A9C1EMYID%2024-03-05T10:11:12Z%extra",
	} {
		_, err := decodeEntry(raw)
		require.ErrorIs(t, err, ErrCacheCorruption, raw)
	}
}

func TestCacheKey(t *testing.T) {
	require.Equal(t, testKey, CacheKey(testRequest(), false))
	require.Equal(t, testKey+"_RedBox Logistics", CacheKey(testRequest(), true))
}
