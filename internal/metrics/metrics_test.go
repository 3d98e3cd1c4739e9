package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopRecorder(t *testing.T) {
	var r Recorder = NopRecorder{}
	// must be safe with nil maps
	r.RecordEvent("model_uploaded", nil, nil)
}

func TestHTTPInstrumentation_Middleware(t *testing.T) {
	inst, err := NewHTTPInstrumentation()
	require.NoError(t, err)

	handler := inst.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/models", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestStatusWriter_DefaultsToOK(t *testing.T) {
	inst, err := NewHTTPInstrumentation()
	require.NoError(t, err)

	handler := inst.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok")) // implicit 200
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
