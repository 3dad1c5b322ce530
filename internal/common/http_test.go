package common

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	cases := map[string]struct {
		forwarded string
		realIP    string
		remote    string
		want      string
	}{
		"forwarded first":       {forwarded: "203.0.113.9, 10.0.0.1", remote: "10.0.0.2:1234", want: "203.0.113.9"},
		"skips invalid entries": {forwarded: "unknown, 198.51.100.4", want: "198.51.100.4"},
		"real ip":               {realIP: "198.51.100.7", remote: "10.0.0.2:1234", want: "198.51.100.7"},
		"remote addr":           {remote: "192.0.2.1:5555", want: "192.0.2.1"},
		"mapped ipv4":           {forwarded: "::ffff:192.0.2.8", want: "192.0.2.8"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}
			require.Equal(t, tc.want, ClientIP(req))
		})
	}
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, NewAppError("CONFIGURATION_EXPIRED", "this configuration is outdated", http.StatusGone, nil))
	require.Equal(t, http.StatusGone, rr.Code)
	require.JSONEq(t, `{"error":{"code":"CONFIGURATION_EXPIRED","message":"this configuration is outdated"}}`, rr.Body.String())

	rr = httptest.NewRecorder()
	WriteError(rr, &AppError{Code: "X"})
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}
