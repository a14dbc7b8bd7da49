package trackingnumbers

import (
	"github.com/BearBump/trackgen/internal/cache"
	"github.com/pkg/errors"
)

var (
	// ErrCacheUnavailable is the store's own sentinel, so driver errors match it directly.
	ErrCacheUnavailable = cache.ErrUnavailable
	// ErrCacheCorruption means a stored value could not be decoded.
	ErrCacheCorruption = errors.New("cache entry corrupted")
)

func storeError(err error, op string) error {
	if errors.Is(err, cache.ErrUnavailable) {
		return errors.Wrap(err, op)
	}
	return cache.Unavailable(err, op)
}
