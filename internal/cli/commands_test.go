package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"divtrack/internal/config"
	"divtrack/internal/entitlement"
	"divtrack/internal/errors"
	"divtrack/internal/models"
)

type fakeBackend struct {
	safetyCalls  atomic.Int32
	paymentCalls atomic.Int32
	tier         atomic.Value
	safetyBody   atomic.Value
}

func (b *fakeBackend) handler(t *testing.T) http.Handler {
	b.tier.Store("premium")
	mux := http.NewServeMux()
	mux.HandleFunc("/api/price/AAPL", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"ticker": "AAPL", "price": 100.0, "source": "yfinance", "timestamp": "2024-03-15T10:30:00"})
	})
	mux.HandleFunc("/api/historical/AAPL", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"data": []map[string]interface{}{
			{"date": "2024-03-13", "Close": 98.0},
			{"date": "2024-03-14", "Close": 99.0},
			{"date": "2024-03-15", "Close": 100.0},
		}})
	})
	mux.HandleFunc("/api/dividends/AAPL", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"dividends": []map[string]interface{}{
			{"date": "2024-02-09", "amount": 0.5},
		}})
	})
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			writeJSON(w, map[string]string{"detail": "Invalid credentials"})
			return
		}
		writeJSON(w, map[string]string{"access_token": "tok-1", "subscription": b.tier.Load().(string)})
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]string{"email": "jane@example.com", "subscription": b.tier.Load().(string)})
	})
	mux.HandleFunc("/api/subscription/upgrade", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-1", r.URL.Query().Get("token"))
		b.tier.Store(r.URL.Query().Get("tier"))
		writeJSON(w, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/api/dividend/safety-score", func(w http.ResponseWriter, r *http.Request) {
		b.safetyCalls.Add(1)
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.safetyBody.Store(body)
		writeJSON(w, map[string]interface{}{"grade": "A", "score": 92, "label": "Very Safe", "safe": true})
	})
	mux.HandleFunc("/api/payment/crypto", func(w http.ResponseWriter, r *http.Request) {
		b.paymentCalls.Add(1)
		assert.Equal(t, "bitcoin", r.URL.Query().Get("crypto_type"))
		writeJSON(w, map[string]string{"transaction_id": "tx-9", "wallet_address": "bc1qexample"})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestConfig(t *testing.T, b *fakeBackend) *config.Config {
	t.Helper()
	srv := httptest.NewServer(b.handler(t))
	t.Cleanup(srv.Close)

	cfg := config.Default(t.TempDir())
	cfg.API.BaseURL = srv.URL + "/api"
	cfg.API.RateLimitRPS = 0
	cfg.Cache.Enabled = false
	cfg.Log.Console = false
	cfg.Log.File = false
	return cfg
}

func execute(cfg *config.Config, args ...string) (string, error) {
	cmd := NewRootCmd(cfg, zerolog.Nop())
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestQuoteJSON(t *testing.T) {
	cfg := newTestConfig(t, &fakeBackend{})

	out, err := execute(cfg, "quote", "aapl", "--json")
	require.NoError(t, err)

	var got struct {
		Ticker  string `json:"ticker"`
		History []struct {
			Close float64 `json:"close"`
		} `json:"history"`
		Yields []struct {
			YieldPercent float64 `json:"yield_percent"`
			Known        bool    `json:"known"`
		} `json:"yields"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "AAPL", got.Ticker)
	require.Len(t, got.History, 3)
	assert.Equal(t, 100.0, got.History[2].Close)
	require.Len(t, got.Yields, 1)
	assert.True(t, got.Yields[0].Known)
	assert.InDelta(t, 0.5, got.Yields[0].YieldPercent, 1e-9)
}

func TestQuoteText(t *testing.T) {
	cfg := newTestConfig(t, &fakeBackend{})

	out, err := execute(cfg, "quote", "AAPL")
	require.NoError(t, err)
	assert.Contains(t, out, "AAPL  $100.00")
	assert.Contains(t, out, "0.50%")
	assert.Contains(t, out, "+2.04%")
}

func TestSafetyLockedWithoutLogin(t *testing.T) {
	b := &fakeBackend{}
	cfg := newTestConfig(t, b)

	out, err := execute(cfg, "safety", "AAPL")
	require.NoError(t, err)
	assert.Contains(t, out, "requires a premium plan")
	assert.Zero(t, b.safetyCalls.Load())
}

func TestSafetyExplicitZeroFlagIsSent(t *testing.T) {
	b := &fakeBackend{}
	cfg := newTestConfig(t, b)

	_, err := execute(cfg, "login", "jane@example.com", "--password", "hunter2")
	require.NoError(t, err)

	_, err = execute(cfg, "safety", "AAPL", "--earnings-growth", "0", "--debt-to-equity", "0")
	require.NoError(t, err)

	body, ok := b.safetyBody.Load().(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 0.0, body["earnings_growth"])
	assert.Equal(t, 0.0, body["debt_to_equity"])
	assert.Equal(t, 30.0, body["payout_ratio"])
	assert.Equal(t, 5.0, body["fcf_trend"])
}

func TestLoginPersistsAcrossCommands(t *testing.T) {
	b := &fakeBackend{}
	cfg := newTestConfig(t, b)

	out, err := execute(cfg, "login", "jane@example.com", "--password", "hunter2")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as jane@example.com")

	out, err = execute(cfg, "whoami", "--json")
	require.NoError(t, err)
	var who sessionView
	require.NoError(t, json.Unmarshal([]byte(out), &who))
	assert.True(t, who.Authenticated)
	assert.Equal(t, models.TierPremium, who.Tier)

	out, err = execute(cfg, "safety", "AAPL")
	require.NoError(t, err)
	assert.Contains(t, out, "Score: 92/100")
	assert.EqualValues(t, 1, b.safetyCalls.Load())

	_, err = execute(cfg, "logout")
	require.NoError(t, err)
	out, err = execute(cfg, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")
}

func TestLoginRejected(t *testing.T) {
	cfg := newTestConfig(t, &fakeBackend{})

	_, err := execute(cfg, "login", "jane@example.com", "--password", "wrong")
	var authErr *errors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Invalid credentials", errors.UserMessage(err))
}

func TestLoginValidatesBeforeCalling(t *testing.T) {
	cfg := newTestConfig(t, &fakeBackend{})

	_, err := execute(cfg, "login", "not-an-email", "--password", "x")
	var valErr *errors.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "email", valErr.Field)
}

func TestPayRequiresLogin(t *testing.T) {
	b := &fakeBackend{}
	cfg := newTestConfig(t, b)

	_, err := execute(cfg, "pay", "premium", "--crypto", "bitcoin")
	require.Error(t, err)
	assert.Equal(t, "please login first", errors.UserMessage(err))
	assert.Zero(t, b.paymentCalls.Load())
}

func TestPayAfterLogin(t *testing.T) {
	b := &fakeBackend{}
	cfg := newTestConfig(t, b)
	b.tier.Store("free")

	_, err := execute(cfg, "login", "jane@example.com", "--password", "hunter2")
	require.NoError(t, err)

	out, err := execute(cfg, "pay", "premium", "--crypto", "bitcoin", "--json")
	require.NoError(t, err)
	var handle models.PaymentHandle
	require.NoError(t, json.Unmarshal([]byte(out), &handle))
	assert.Equal(t, "tx-9", handle.TransactionID)
	assert.Equal(t, 9.99, handle.Amount)
	assert.Equal(t, models.PaymentPending, handle.Status)
}

func TestPlansJSON(t *testing.T) {
	cfg := config.Default(t.TempDir())

	out, err := execute(cfg, "plans", "--json")
	require.NoError(t, err)
	var plans []entitlement.Plan
	require.NoError(t, json.Unmarshal([]byte(out), &plans))
	require.Len(t, plans, 3)
	assert.Equal(t, models.TierElite, plans[2].Tier)
}

func TestFeaturesForTier(t *testing.T) {
	cfg := config.Default(t.TempDir())

	out, err := execute(cfg, "features", "free")
	require.NoError(t, err)
	assert.Regexp(t, `safety_score\s+no`, out)
	assert.Regexp(t, `basic_quote\s+yes`, out)

	_, err = execute(cfg, "features", "platinum")
	require.Error(t, err)
}

func TestHandleWatchInput(t *testing.T) {
	var buf bytes.Buffer
	output := newOutput(&buf, false, false)

	assert.True(t, handleWatchInput(context.Background(), nil, output, ":quit"))
	assert.False(t, handleWatchInput(context.Background(), nil, output, "   "))
	assert.False(t, handleWatchInput(context.Background(), nil, output, ":bogus"))
	assert.Contains(t, buf.String(), "unknown command :bogus")
}

func TestHealthCommand(t *testing.T) {
	b := &fakeBackend{}
	cfg := newTestConfig(t, b)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			writeJSON(w, map[string]interface{}{"status": "healthy", "provider": "yfinance", "caching": true})
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	cfg.API.BaseURL = srv.URL + "/api"

	out, err := execute(cfg, "health")
	require.NoError(t, err)
	assert.Regexp(t, `api\s+HEALTHY`, out)
	assert.Regexp(t, `token_store\s+HEALTHY`, out)
	assert.Contains(t, out, "provider=yfinance")
}

func TestHealthCommandUnreachable(t *testing.T) {
	cfg := newTestConfig(t, &fakeBackend{})

	out, err := execute(cfg, "health", "--json")
	require.Error(t, err)
	assert.Contains(t, out, `"UNHEALTHY"`)
}

func TestMetricsHandler(t *testing.T) {
	cfg := newTestConfig(t, &fakeBackend{})
	app := NewApp(cfg, zerolog.Nop())
	require.NoError(t, app.Init(context.Background()))
	t.Cleanup(func() { _ = app.Close() })
	registerBusMetrics(app.Registry, app.Bus)
	registerBusMetrics(app.Registry, app.Bus)

	_, err := app.Market.Load(context.Background(), "AAPL")
	require.NoError(t, err)

	srv := httptest.NewServer(metricsHandler(app.Registry, app.Health))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	assert.Contains(t, body.String(), `divtrack_marketdata_cycles_total{result="committed"} 1`)
	assert.Contains(t, body.String(), "divtrack_events_dropped_total")

	resp2, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)
}

func TestUpgradeCommand(t *testing.T) {
	b := &fakeBackend{}
	cfg := newTestConfig(t, b)
	b.tier.Store("free")

	_, err := execute(cfg, "login", "jane@example.com", "--password", "hunter2")
	require.NoError(t, err)

	out, err := execute(cfg, "upgrade", "Premium")
	require.NoError(t, err)
	assert.Contains(t, out, "Plan upgraded: free → premium")

	out, err = execute(cfg, "upgrade", "premium")
	require.NoError(t, err)
	assert.Contains(t, out, "Already on the premium plan")

	_, err = execute(cfg, "upgrade", "gold")
	var subErr *errors.SubscriptionError
	require.ErrorAs(t, err, &subErr)
}
