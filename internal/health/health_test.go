package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWorstStatusWins(t *testing.T) {
	m := NewMonitor(time.Second)
	m.Register("api", APICheck(0, func(ctx context.Context) (map[string]interface{}, error) {
		return map[string]interface{}{"provider": "yfinance"}, nil
	}))
	m.Register("store", StoreCheck(func(ctx context.Context) error { return nil }))

	h := m.Run(context.Background())
	assert.Equal(t, StatusHealthy, h.Status)
	require.Len(t, h.Components, 2)
	assert.Equal(t, "api", h.Components[0].Name)
	assert.Equal(t, "yfinance", h.Components[0].Details["provider"])

	m.Register("store", StoreCheck(func(ctx context.Context) error { return errors.New("disk gone") }))
	h = m.Run(context.Background())
	assert.Equal(t, StatusUnhealthy, h.Status)
	assert.Equal(t, "disk gone", h.Components[1].Message)
	assert.Equal(t, h, m.Last())
}

func TestSlowAPIIsDegraded(t *testing.T) {
	m := NewMonitor(time.Second)
	m.Register("api", APICheck(time.Millisecond, func(ctx context.Context) (map[string]interface{}, error) {
		time.Sleep(5 * time.Millisecond)
		return nil, nil
	}))

	assert.Equal(t, StatusDegraded, m.Run(context.Background()).Status)
}

func TestPanickingCheckIsUnhealthy(t *testing.T) {
	m := NewMonitor(time.Second)
	m.Register("bad", func(ctx context.Context) ComponentHealth { panic("boom") })

	h := m.Run(context.Background())
	assert.Equal(t, StatusUnhealthy, h.Status)
	assert.Contains(t, h.Components[0].Message, "boom")
}

func TestHandler(t *testing.T) {
	m := NewMonitor(time.Second)
	m.Register("store", StoreCheck(func(ctx context.Context) error { return errors.New("locked") }))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body SystemHealth
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, StatusUnhealthy, body.Status)
}
