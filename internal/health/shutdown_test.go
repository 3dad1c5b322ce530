package health_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-licence/internal/health"
)

func TestReadinessAfterShutdown(t *testing.T) {
	h := health.Handler{Probes: []health.Probe{health.Postgres(pinger{}, 0)}}

	health.SetReady(true)
	code, _ := ready(t, h)
	require.Equal(t, http.StatusOK, code)

	health.SetReady(false)
	code, status := ready(t, h)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "draining", status["server"])

	health.SetReady(true)
}
