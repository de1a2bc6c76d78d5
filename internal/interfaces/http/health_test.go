package http

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/fundrun/internal/persistence"
)

func decodeHealth(t *testing.T, body []byte) HealthResponse {
	t.Helper()
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	svc := &fakeService{catalog: sampleCatalog()}
	s := newTestServer(t, svc, nil)

	rec := doRequest(s, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))

	resp := decodeHealth(t, rec.Body.Bytes())
	assert.Equal(t, "test", resp.Version)
	assert.NotEqual(t, "unhealthy", resp.Status)
	assert.NotEmpty(t, resp.Uptime)
	assert.NotEmpty(t, resp.System.GoVersion)

	// a nil health probe means persistence is deliberately off
	require.Contains(t, resp.Checks, "database")
	assert.Equal(t, "pass", resp.Checks["database"].Status)

	require.Contains(t, resp.Checks, "event_catalog")
	assert.Equal(t, "pass", resp.Checks["event_catalog"].Status)

	require.Contains(t, resp.Checks, "health_endpoint")
	assert.Equal(t, "pass", resp.Checks["health_endpoint"].Status)
}

func TestHealthEndpoint_EmptyCatalog(t *testing.T) {
	s := newTestServer(t, &fakeService{}, nil)

	rec := doRequest(s, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeHealth(t, rec.Body.Bytes())
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "warn", resp.Checks["event_catalog"].Status)
}

func TestHealthEndpoint_DatabaseHealthy(t *testing.T) {
	dbHealth := &fakeDBHealth{hc: persistence.HealthCheck{
		Healthy:        true,
		ResponseTimeMS: 5,
	}}
	s := newTestServer(t, &fakeService{catalog: sampleCatalog()}, dbHealth)

	rec := doRequest(s, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeHealth(t, rec.Body.Bytes())
	assert.Equal(t, "pass", resp.Checks["database"].Status)
	assert.Contains(t, resp.Checks["database"].Message, "5ms")
}

func TestHealthEndpoint_DatabaseUnhealthy(t *testing.T) {
	dbHealth := &fakeDBHealth{hc: persistence.HealthCheck{
		Healthy: false,
		Errors:  []string{"connection refused"},
	}}
	s := newTestServer(t, &fakeService{catalog: sampleCatalog()}, dbHealth)

	rec := doRequest(s, "GET", "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	resp := decodeHealth(t, rec.Body.Bytes())
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "fail", resp.Checks["database"].Status)
	assert.Contains(t, resp.Checks["database"].Message, "connection refused")
}
