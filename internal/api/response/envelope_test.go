package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderher/wanderher/internal/api/response"
)

func TestNewMeta(t *testing.T) {
	t.Parallel()

	t.Run("generates a uuid", func(t *testing.T) {
		t.Parallel()
		meta := response.NewMeta("")

		_, err := uuid.Parse(meta.RequestID)
		assert.NoError(t, err, "requestId should be a valid UUID")
	})

	t.Run("keeps the request id", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "req-42", response.NewMeta("req-42").RequestID)
	})

	t.Run("timestamp is RFC3339", func(t *testing.T) {
		t.Parallel()
		before := time.Now().UTC().Add(-time.Second)

		parsed, err := time.Parse(time.RFC3339, response.NewMeta("").Timestamp)

		require.NoError(t, err)
		assert.False(t, parsed.Before(before))
	})
}

func TestSuccess_WritesEnvelope(t *testing.T) {
	// Arrange
	w := httptest.NewRecorder()

	// Act
	response.Success(w, http.StatusOK, map[string]string{"status": "healthy"}, "req-1")

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "healthy", env["data"].(map[string]interface{})["status"])
	assert.Nil(t, env["error"])
	assert.Equal(t, "req-1", env["meta"].(map[string]interface{})["requestId"])
}

func TestErrWithDetails_WritesErrorEnvelope(t *testing.T) {
	// Arrange
	w := httptest.NewRecorder()
	details := []map[string]string{{"field": "paths[0]", "message": "must be a relative path starting with /"}}

	// Act
	response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", details, "req-2")

	// Assert
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Nil(t, env["data"])
	errObj := env["error"].(map[string]interface{})
	assert.Equal(t, "VALIDATION_ERROR", errObj["code"])
	assert.Len(t, errObj["details"], 1)
}

func TestErr_OmitsDetails(t *testing.T) {
	w := httptest.NewRecorder()

	response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid secret", "req-3")

	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.NotContains(t, env["error"].(map[string]interface{}), "details")
}

func TestRaw_WritesBodyWithoutEnvelope(t *testing.T) {
	w := httptest.NewRecorder()

	response.Raw(w, http.StatusOK, map[string]any{"revalidated": true})

	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"revalidated":true}`, w.Body.String())
}
