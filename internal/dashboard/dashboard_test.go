package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"divtrack/internal/analytics"
	"divtrack/internal/api"
	"divtrack/internal/events"
	"divtrack/internal/marketdata"
	"divtrack/internal/models"
)

type source struct{}

func (source) Quote(ctx context.Context, ticker string) (models.Quote, error) {
	return models.Quote{Ticker: ticker, Price: 100}, nil
}

func (source) History(ctx context.Context, ticker string, days int) ([]models.PricePoint, error) {
	return []models.PricePoint{{Date: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Close: 99}}, nil
}

func (source) Dividends(ctx context.Context, ticker string, limit int) ([]models.Dividend, error) {
	return []models.Dividend{{Date: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), Amount: 0.5}}, nil
}

type remote struct {
	mu      sync.Mutex
	capture []api.CaptureRequest
	safety  int
}

func (r *remote) SafetyScore(ctx context.Context, req api.SafetyRequest) (models.SafetyScore, error) {
	r.mu.Lock()
	r.safety++
	r.mu.Unlock()
	return models.SafetyScore{Grade: models.GradeA, Score: 90, Safe: true}, nil
}

func (r *remote) CaptureStrategy(ctx context.Context, req api.CaptureRequest) (models.CaptureStrategy, error) {
	r.mu.Lock()
	r.capture = append(r.capture, req)
	r.mu.Unlock()
	return models.CaptureStrategy{Recommended: true}, nil
}

type sessionStub struct {
	mu   sync.Mutex
	tier models.Tier
}

func (s *sessionStub) Current() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.Session{Tier: s.tier}
}

type recorder struct {
	mu       sync.Mutex
	market   []marketdata.View
	safety   []analytics.SafetyResult
	capture  []analytics.CaptureResult
	sessions []models.Session
}

func (r *recorder) Market(v marketdata.View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.market = append(r.market, v)
}

func (r *recorder) Safety(res analytics.SafetyResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.safety = append(r.safety, res)
}

func (r *recorder) Capture(res analytics.CaptureResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capture = append(r.capture, res)
}

func (r *recorder) Session(s models.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, s)
}

func (r *recorder) lastSafety() (analytics.SafetyResult, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.safety) == 0 {
		return analytics.SafetyResult{}, 0
	}
	return r.safety[len(r.safety)-1], len(r.safety)
}

func setup(t *testing.T, tier models.Tier) (*events.Bus, *recorder, *remote, *sessionStub, context.CancelFunc, chan error) {
	t.Helper()
	bus := events.NewBus()
	rec := &recorder{}
	rem := &remote{}
	sess := &sessionStub{tier: tier}

	c := New(Options{
		Bus:     bus,
		Session: sess,
		Market:  marketdata.New(marketdata.Options{Source: source{}, Logger: zerolog.Nop()}),
		Safety:  analytics.NewSafetyRequester(rem, zerolog.Nop()),
		Capture: analytics.NewCaptureRequester(rem, zerolog.Nop()),
		Render:  rec,
		Logger:  zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	bus.Start(ctx)
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		bus.Stop()
	})
	return bus, rec, rem, sess, cancel, done
}

func TestTickerChangeLoadsMarketAndAnalytics(t *testing.T) {
	bus, rec, rem, _, _, _ := setup(t, models.TierPremium)

	bus.Publish(events.Event{Kind: events.TickerChanged, Ticker: "aapl"})

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.market) == 1 && len(rec.safety) == 1 && len(rec.capture) == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotNil(t, rec.market[0].Snapshot)
	assert.Equal(t, "AAPL", rec.market[0].Snapshot.Ticker)
	assert.Equal(t, analytics.StateReady, rec.safety[0].State)

	rem.mu.Lock()
	defer rem.mu.Unlock()
	require.Len(t, rem.capture, 1)
	assert.Equal(t, "2024-03-15", rem.capture[0].ExDividendDate)
	assert.Equal(t, 100.0, rem.capture[0].CurrentPrice)
}

func TestTierChangeRerunsGatedRequests(t *testing.T) {
	bus, rec, rem, sess, _, _ := setup(t, models.TierFree)

	bus.Publish(events.Event{Kind: events.TickerChanged, Ticker: "KO"})
	require.Eventually(t, func() bool {
		_, n := rec.lastSafety()
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)

	res, _ := rec.lastSafety()
	assert.Equal(t, analytics.StateLocked, res.State)
	rem.mu.Lock()
	assert.Zero(t, rem.safety)
	rem.mu.Unlock()

	sess.mu.Lock()
	sess.tier = models.TierPremium
	sess.mu.Unlock()
	bus.Publish(events.Event{Kind: events.TierChanged, Tier: models.TierPremium})

	require.Eventually(t, func() bool {
		res, n := rec.lastSafety()
		return n == 2 && res.State == analytics.StateReady
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionChangeIsRendered(t *testing.T) {
	bus, rec, _, _, _, _ := setup(t, models.TierFree)

	bus.Publish(events.Event{Kind: events.SessionChanged, Session: models.EmptySession()})

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.sessions) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunStopsOnCancel(t *testing.T) {
	_, _, _, _, cancel, done := setup(t, models.TierFree)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		done <- err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type readySafety struct {
	mu     sync.Mutex
	params []analytics.SafetyParams
}

func (s *readySafety) Request(ctx context.Context, ticker string, tier models.Tier, params analytics.SafetyParams) analytics.SafetyResult {
	s.mu.Lock()
	s.params = append(s.params, params)
	s.mu.Unlock()
	return analytics.SafetyResult{State: analytics.StateReady, Ticker: ticker, Value: &models.SafetyScore{Grade: models.GradeA}}
}

type readyCapture struct{}

func (readyCapture) Request(ctx context.Context, ticker string, tier models.Tier, params analytics.CaptureParams) analytics.CaptureResult {
	return analytics.CaptureResult{State: analytics.StateReady, Ticker: ticker, Value: &models.CaptureStrategy{}}
}

func newBareController(safety SafetySource, rec *recorder, params *analytics.SafetyParams) *Controller {
	return New(Options{
		Bus:          events.NewBus(),
		Session:      &sessionStub{tier: models.TierPremium},
		Market:       marketdata.New(marketdata.Options{Source: source{}, Logger: zerolog.Nop()}),
		Safety:       safety,
		Capture:      readyCapture{},
		Render:       rec,
		Logger:       zerolog.Nop(),
		SafetyParams: params,
	})
}

func TestAnalyticsForReplacedTickerAreNotRendered(t *testing.T) {
	rec := &recorder{}
	c := newBareController(&readySafety{}, rec, nil)

	// T1's cycle reaches the requesters after T2 became the selection.
	c.setTicker("T2")
	c.runAnalytics(context.Background(), "T1", models.TierPremium)

	rec.mu.Lock()
	assert.Empty(t, rec.safety)
	assert.Empty(t, rec.capture)
	rec.mu.Unlock()

	c.runAnalytics(context.Background(), "T2", models.TierPremium)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.safety, 1)
	require.Len(t, rec.capture, 1)
	assert.Equal(t, "T2", rec.safety[0].Ticker)
	assert.Equal(t, "T2", rec.capture[0].Ticker)
}

func TestSafetyParamsDefaultAndOverride(t *testing.T) {
	safety := &readySafety{}
	c := newBareController(safety, &recorder{}, nil)
	c.setTicker("KO")
	c.runAnalytics(context.Background(), "KO", models.TierPremium)

	custom := analytics.SafetyParams{PayoutRatio: 70, EarningsGrowth: 0, DebtToEquity: 0, FCFTrend: -2}
	c = newBareController(safety, &recorder{}, &custom)
	c.setTicker("KO")
	c.runAnalytics(context.Background(), "KO", models.TierPremium)

	safety.mu.Lock()
	defer safety.mu.Unlock()
	require.Len(t, safety.params, 2)
	assert.Equal(t, analytics.DefaultSafetyParams(), safety.params[0])
	assert.Equal(t, custom, safety.params[1])
}
