package cache

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestUnavailable(t *testing.T) {
	require.NoError(t, Unavailable(nil, "op"))

	cause := errors.New("dial tcp: connection refused")
	err := Unavailable(cause, "redis get")
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, err, cause)
	require.Equal(t, "redis get: dial tcp: connection refused", err.Error())
}
