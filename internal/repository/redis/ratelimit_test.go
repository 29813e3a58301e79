package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecision(t *testing.T) {
	d, err := parseDecision([]any{int64(1), int64(3), int64(0)}, 10)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, int64(3), d.Current)
	assert.Equal(t, 10, d.Limit)

	d, err = parseDecision([]any{int64(0), int64(11), int64(1500)}, 10)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 1500*time.Millisecond, d.RetryAfter)

	_, err = parseDecision("nope", 10)
	assert.Error(t, err)
}

func TestToInt(t *testing.T) {
	assert.Equal(t, int64(7), toInt(int64(7)))
	assert.Equal(t, int64(7), toInt(7))
	assert.Equal(t, int64(7), toInt(float64(7)))
	assert.Equal(t, int64(7), toInt("7"))
	assert.Equal(t, int64(0), toInt(nil))
}
