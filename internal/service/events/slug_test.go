package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Rock Night":             "rock-night",
		"  Rock   Night!! 2025 ": "rock-night-2025",
		"Café Müller – Live":     "cafe-muller-live",
		"a_b--c":                 "a-b-c",
		"!!!":                    "event",
		"音乐":                     "event",
	}

	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestNextSlug(t *testing.T) {
	assert.Equal(t, "rock-night", NextSlug("rock-night", nil))
	assert.Equal(t, "rock-night-1", NextSlug("rock-night", []string{"rock-night"}))
	assert.Equal(t, "rock-night-2", NextSlug("rock-night", []string{"rock-night", "rock-night-1"}))
	assert.Equal(t, "rock-night-1", NextSlug("rock-night", []string{"rock-night", "rock-night-2"}))
}
