package hc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler(t *testing.T) {
	h := Handler(Info{Version: "1.0.0", Commit: "abc", Collection: "wayspot_anchors"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hc", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "1.0.0", body["version"])
	assert.Equal(t, "abc", body["commit"])
	assert.Equal(t, "wayspot_anchors", body["collection"])
	assert.NotEmpty(t, body["uptime"])
}
