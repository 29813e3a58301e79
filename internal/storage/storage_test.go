package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectName(t *testing.T) {
	name := objectName("events", "Poster.PNG")

	assert.True(t, strings.HasPrefix(name, "events/"))
	assert.True(t, strings.HasSuffix(name, ".png"))
	assert.NotEqual(t, name, objectName("events", "Poster.PNG"))
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t,
		"https://storage.googleapis.com/quicktix.appspot.com/events/x.png",
		publicURL("quicktix.appspot.com", "events/x.png"),
	)
}
