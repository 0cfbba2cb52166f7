// Package dashboard reacts to ticker, tier and session events by driving the
// market data orchestrator and the gated analytics requesters.
package dashboard

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"divtrack/internal/analytics"
	"divtrack/internal/events"
	"divtrack/internal/logging"
	"divtrack/internal/marketdata"
	"divtrack/internal/models"
)

// Market is the market data orchestrator.
type Market interface {
	Load(ctx context.Context, ticker string) (models.MarketSnapshot, error)
	State() marketdata.View
}

// SessionView exposes the current session.
type SessionView interface {
	Current() models.Session
}

// SafetySource requests safety scores.
type SafetySource interface {
	Request(ctx context.Context, ticker string, tier models.Tier, params analytics.SafetyParams) analytics.SafetyResult
}

// CaptureSource requests capture strategies.
type CaptureSource interface {
	Request(ctx context.Context, ticker string, tier models.Tier, params analytics.CaptureParams) analytics.CaptureResult
}

// Renderer displays results. Calls may come from several goroutines.
type Renderer interface {
	Market(view marketdata.View)
	Safety(res analytics.SafetyResult)
	Capture(res analytics.CaptureResult)
	Session(s models.Session)
}

// Options configures a Controller.
type Options struct {
	Bus     *events.Bus
	Session SessionView
	Market  Market
	Safety  SafetySource
	Capture CaptureSource
	Render  Renderer
	Logger  zerolog.Logger

	// SafetyParams are sent with every safety request. Nil sends
	// analytics.DefaultSafetyParams.
	SafetyParams *analytics.SafetyParams
}

// Controller dispatches events. Each ticker or refresh event starts its own
// fetch cycle without waiting for earlier ones; the orchestrator and
// requesters discard superseded results.
type Controller struct {
	opts   Options
	sub    <-chan events.Event
	logger zerolog.Logger
	safety analytics.SafetyParams

	mu     sync.Mutex
	ticker string
	wg     sync.WaitGroup
}

// New creates a Controller subscribed to opts.Bus.
func New(opts Options) *Controller {
	safety := analytics.DefaultSafetyParams()
	if opts.SafetyParams != nil {
		safety = *opts.SafetyParams
	}
	return &Controller{
		opts:   opts,
		safety: safety,
		sub: opts.Bus.Subscribe(
			events.TickerChanged,
			events.TierChanged,
			events.SessionChanged,
			events.RefreshRequested,
		),
		logger: logging.WithComponent(opts.Logger, "dashboard"),
	}
}

// Run handles events until ctx is done or the bus stops, then waits for
// in-flight cycles.
func (c *Controller) Run(ctx context.Context) error {
	defer c.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-c.sub:
			if !ok {
				return nil
			}
			c.handle(ctx, ev)
		}
	}
}

func (c *Controller) handle(ctx context.Context, ev events.Event) {
	c.logger.Debug().Str("kind", string(ev.Kind)).Str("ticker", ev.Ticker).Msg("event")

	switch ev.Kind {
	case events.TickerChanged:
		ticker := models.NormalizeTicker(ev.Ticker)
		if ticker == "" {
			return
		}
		c.setTicker(ticker)
		c.spawn(func() { c.loadAll(ctx, ticker) })

	case events.RefreshRequested:
		if ticker := c.currentTicker(); ticker != "" {
			c.spawn(func() { c.loadAll(ctx, ticker) })
		}

	case events.TierChanged:
		if ticker := c.currentTicker(); ticker != "" {
			tier := ev.Tier
			c.spawn(func() { c.runAnalytics(ctx, ticker, tier) })
		}

	case events.SessionChanged:
		c.opts.Render.Session(ev.Session)
	}
}

func (c *Controller) spawn(fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

func (c *Controller) setTicker(t string) {
	c.mu.Lock()
	c.ticker = t
	c.mu.Unlock()
}

func (c *Controller) currentTicker() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticker
}

func (c *Controller) loadAll(ctx context.Context, ticker string) {
	if _, err := c.opts.Market.Load(ctx, ticker); err == marketdata.ErrStaleGeneration {
		return
	}
	c.opts.Render.Market(c.opts.Market.State())
	c.runAnalytics(ctx, ticker, c.opts.Session.Current().Tier)
}

func (c *Controller) runAnalytics(ctx context.Context, ticker string, tier models.Tier) {
	capture := analytics.DefaultCaptureParams()
	if snap := c.opts.Market.State().Snapshot; snap != nil && snap.Ticker == ticker {
		capture = analytics.CaptureParamsFromSnapshot(*snap)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if res := c.opts.Safety.Request(ctx, ticker, tier, c.safety); c.renderable(ticker, res.State) {
			c.opts.Render.Safety(res)
		}
	}()
	go func() {
		defer wg.Done()
		if res := c.opts.Capture.Request(ctx, ticker, tier, capture); c.renderable(ticker, res.State) {
			c.opts.Render.Capture(res)
		}
	}()
	wg.Wait()
}

// renderable reports whether a result for ticker may reach the screen. A
// cycle that started its request after a newer ticker's cycle still holds
// the requester's latest generation, so the ticker is checked too.
func (c *Controller) renderable(ticker string, state analytics.State) bool {
	return state != analytics.StateStale && ticker == c.currentTicker()
}
