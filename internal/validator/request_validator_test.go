package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositiveID(t *testing.T) {
	id, err := PositiveID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "0", "-1", "abc", "1.5"} {
		_, err := PositiveID(raw)
		assert.ErrorIs(t, err, ErrInvalidInput, raw)
	}
}

func TestIntOr(t *testing.T) {
	n, err := IntOr("", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	n, err = IntOr("10", 50)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	_, err = IntOr("-3", 50)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = IntOr("x", 50)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDurationOr(t *testing.T) {
	d, err := DurationOr("", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, d)

	d, err = DurationOr("2h", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, d)

	_, err = DurationOr("-1m", 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = DurationOr("soon", 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
