package json

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	rec := httptest.NewRecorder()

	err := Write(rec, map[string]string{"status": "ok"})
	require.NoError(t, err)

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		write      func(rec *httptest.ResponseRecorder)
		wantStatus int
		wantError  string
	}{
		{
			name:       "bad_request",
			write:      func(rec *httptest.ResponseRecorder) { WriteBadRequest(rec, "missing provider") },
			wantStatus: 400,
			wantError:  "bad_request",
		},
		{
			name:       "unauthorized",
			write:      func(rec *httptest.ResponseRecorder) { WriteUnauthorized(rec, "no session") },
			wantStatus: 401,
			wantError:  "unauthorized",
		},
		{
			name:       "internal",
			write:      func(rec *httptest.ResponseRecorder) { WriteInternalServerError(rec, "boom") },
			wantStatus: 500,
			wantError:  "internal_server_error",
		},
		{
			name:       "unavailable",
			write:      func(rec *httptest.ResponseRecorder) { WriteServiceUnavailable(rec, "auth service down") },
			wantStatus: 503,
			wantError:  "service_unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantError, body.Error)
		})
	}
}
