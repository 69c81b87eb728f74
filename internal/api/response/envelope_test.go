package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackwise/trackwise/internal/api/response"
)

func TestNewMeta_UsesProvidedRequestID(t *testing.T) {
	meta := response.NewMeta("my-custom-request-id")

	assert.Equal(t, "my-custom-request-id", meta.RequestID)
}

func TestNewMeta_TimestampIsRFC3339(t *testing.T) {
	before := time.Now().UTC().Add(-1 * time.Second)

	meta := response.NewMeta("")

	parsed, err := time.Parse(time.RFC3339, meta.Timestamp)
	require.NoError(t, err, "timestamp should be valid RFC3339")
	assert.False(t, parsed.Before(before), "timestamp should be recent")
	assert.True(t, parsed.Before(time.Now().UTC().Add(1*time.Second)))
}

func TestSuccess_WritesCorrectEnvelope(t *testing.T) {
	// Arrange
	w := httptest.NewRecorder()
	data := map[string]string{"key": "value"}

	// Act
	response.Success(w, http.StatusOK, data, "test-req-id")

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var env map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &env)
	require.NoError(t, err)

	assert.NotNil(t, env["data"])
	assert.Nil(t, env["error"])
	meta := env["meta"].(map[string]interface{})
	assert.Equal(t, "test-req-id", meta["requestId"])
	assert.NotEmpty(t, meta["timestamp"])
}

func TestSuccess_Status201(t *testing.T) {
	w := httptest.NewRecorder()

	response.Success(w, http.StatusCreated, "created", "req-1")

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestErr_WritesErrorEnvelope(t *testing.T) {
	w := httptest.NewRecorder()

	response.Err(w, http.StatusNotFound, "NOT_FOUND", "Project not found", "req-2")

	assert.Equal(t, http.StatusNotFound, w.Code)

	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))

	assert.Nil(t, env["data"])
	apiErr := env["error"].(map[string]interface{})
	assert.Equal(t, "NOT_FOUND", apiErr["code"])
	assert.Equal(t, "Project not found", apiErr["message"])
	_, hasDetails := apiErr["details"]
	assert.False(t, hasDetails)
}

func TestErrWithDetails_IncludesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	details := []map[string]string{{"field": "email", "message": "is required"}}

	response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", details, "req-3")

	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))

	apiErr := env["error"].(map[string]interface{})
	assert.Len(t, apiErr["details"], 1)
}

func TestNoContent(t *testing.T) {
	w := httptest.NewRecorder()

	response.NoContent(w)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.Bytes())
}

func TestReject_WritesBareErrorBody(t *testing.T) {
	tests := []struct {
		status  int
		message string
	}{
		{http.StatusUnauthorized, "Authentication failed"},
		{http.StatusForbidden, "Forbidden"},
		{http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			w := httptest.NewRecorder()

			response.Reject(w, tt.status, tt.message)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, map[string]interface{}{"error": tt.message}, body)
		})
	}
}
