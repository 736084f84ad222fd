package logger

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	handler := AccessLog(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/desks", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	handler.ServeHTTP(httptest.NewRecorder(), r)

	out := buf.String()
	require.Contains(t, out, `"method":"GET"`)
	require.Contains(t, out, `"path":"/api/desks"`)
	require.Contains(t, out, `"remote_ip":"203.0.113.7"`)
	require.Contains(t, out, `"status":418`)
}

func TestAccessLogErrorLevelOnServerFailure(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	handler := AccessLog(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Contains(t, buf.String(), `"level":"error"`)
}
