package handler

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorIncludesCorrelationID(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("X-Correlation-ID", "corr-123")

	writeError(rec, 400, "bad input")

	assert.Equal(t, 400, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "bad input", body.Error)
	assert.Equal(t, "corr-123", body.CorrelationID)
}

func TestWriteErrorWithoutCorrelationID(t *testing.T) {
	rec := httptest.NewRecorder()

	writeError(rec, 500, "boom")

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, "boom", raw["error"])
	assert.NotContains(t, raw, "correlation_id")
}
