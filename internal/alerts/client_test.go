package alerts_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/oglimmer/mdalert/errors"
	"github.com/oglimmer/mdalert/internal/alerts"
)

func TestClientFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer T1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"monitorName":"web","tenantName":"acme","status":"down","downtimeStart":"2025-06-26T11:58:00Z"},
			{"monitorName":"db","tenantName":"acme","status":"up"}
		]`))
	}))
	defer server.Close()

	client := alerts.NewClient(server.URL, server.Client(), zerolog.Nop())

	items, err := client.Fetch(context.Background(), "T1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "web", items[0].MonitorName)
	assert.Equal(t, "acme", items[0].TenantName)
	assert.Equal(t, alerts.StatusDown, items[0].Status)
	assert.Equal(t, "2025-06-26T11:58:00Z", items[0].DowntimeStart)
}

func TestClientFetchUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := alerts.NewClient(server.URL, server.Client(), zerolog.Nop())

	_, err := client.Fetch(context.Background(), "stale")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindProtocol, apperrors.KindOf(err))
}

func TestClientFetchMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"an array"}`))
	}))
	defer server.Close()

	client := alerts.NewClient(server.URL, server.Client(), zerolog.Nop())

	_, err := client.Fetch(context.Background(), "T1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindDecode, apperrors.KindOf(err))
}
