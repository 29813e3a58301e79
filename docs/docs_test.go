package docs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocListsRoutes(t *testing.T) {
	var doc struct {
		Paths       map[string]map[string]json.RawMessage `json:"paths"`
		Definitions map[string]json.RawMessage            `json:"definitions"`
	}
	require.NoError(t, json.Unmarshal([]byte(SwaggerInfo.ReadDoc()), &doc))

	for path, method := range map[string]string{
		"/checkout":                        "post",
		"/events/{event}/holds":            "post",
		"/events/{event}/seats":            "get",
		"/validate-otp":                    "post",
		"/users/{id}/organization-profile": "put",
		"/orders/{id}":                     "get",
	} {
		require.Contains(t, doc.Paths, path)
		assert.Contains(t, doc.Paths[path], method, path)
	}

	assert.Contains(t, doc.Definitions, "domain.Order")
	assert.Contains(t, doc.Definitions, "httpgin.ErrorResponse")
}
