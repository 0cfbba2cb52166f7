// Package marketdata loads quote, history and dividends for a ticker as one
// consistent snapshot.
package marketdata

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"divtrack/internal/errors"
	"divtrack/internal/logging"
	"divtrack/internal/models"
	"divtrack/internal/sequence"
)

// ErrStaleGeneration is returned by Load when a newer Load started before
// this one finished. The result was discarded and state is unchanged.
var ErrStaleGeneration = errors.New("superseded by a newer request")

// Source fetches the three parts of a snapshot. Implemented by api.Client.
type Source interface {
	Quote(ctx context.Context, ticker string) (models.Quote, error)
	History(ctx context.Context, ticker string, days int) ([]models.PricePoint, error)
	Dividends(ctx context.Context, ticker string, limit int) ([]models.Dividend, error)
}

// Options configures an Orchestrator.
type Options struct {
	Source        Source
	HistoryDays   int
	DividendLimit int
	Registerer    prometheus.Registerer
	Logger        zerolog.Logger
}

// View is what a display should show right now.
type View struct {
	Ticker     string
	Snapshot   *models.MarketSnapshot
	Err        error
	Loading    bool
	Generation uint64
}

// Orchestrator runs fetch cycles and commits only the latest one.
type Orchestrator struct {
	source        Source
	historyDays   int
	dividendLimit int
	logger        zerolog.Logger
	cycles        *prometheus.CounterVec
	now           func() time.Time

	seq  sequence.Counter
	mu   sync.RWMutex
	view View
}

// New creates an Orchestrator. HistoryDays defaults to 30 and DividendLimit
// to 10.
func New(opts Options) *Orchestrator {
	if opts.HistoryDays <= 0 {
		opts.HistoryDays = 30
	}
	if opts.DividendLimit <= 0 {
		opts.DividendLimit = 10
	}

	cycles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "divtrack",
		Subsystem: "marketdata",
		Name:      "cycles_total",
		Help:      "Market data fetch cycles by result.",
	}, []string{"result"})
	if opts.Registerer != nil {
		opts.Registerer.MustRegister(cycles)
	}

	return &Orchestrator{
		source:        opts.Source,
		historyDays:   opts.HistoryDays,
		dividendLimit: opts.DividendLimit,
		logger:        logging.WithComponent(opts.Logger, "marketdata"),
		cycles:        cycles,
		now:           time.Now,
	}
}

// State returns the current view.
func (o *Orchestrator) State() View {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.view
}

// Load fetches quote, history and dividends for ticker concurrently. Either
// all three are committed together or the cycle fails with one DataError and
// the previous snapshot is dropped. If another Load starts before this one
// finishes, the result is discarded and ErrStaleGeneration is returned.
func (o *Orchestrator) Load(ctx context.Context, ticker string) (models.MarketSnapshot, error) {
	ticker = models.NormalizeTicker(ticker)

	o.mu.Lock()
	gen := o.seq.Next()
	keep := o.view.Snapshot
	if keep != nil && keep.Ticker != ticker {
		keep = nil
	}
	o.view = View{Ticker: ticker, Snapshot: keep, Loading: true, Generation: gen}
	o.mu.Unlock()

	logger := logging.WithGeneration(logging.WithTicker(o.logger, ticker), gen)
	logger.Debug().Msg("fetch cycle started")

	snap, err := o.fetch(ctx, ticker)

	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.seq.IsCurrent(gen) {
		o.cycles.WithLabelValues("stale").Inc()
		logger.Debug().Err(err).Msg("discarding superseded fetch cycle")
		return models.MarketSnapshot{}, ErrStaleGeneration
	}

	if err != nil {
		o.cycles.WithLabelValues("failed").Inc()
		logger.Warn().Err(err).Msg("fetch cycle failed")
		o.view = View{Ticker: ticker, Err: err, Generation: gen}
		return models.MarketSnapshot{}, err
	}

	snap.Generation = gen
	snap.FetchedAt = o.now()
	o.cycles.WithLabelValues("committed").Inc()
	logging.LogSnapshot(logger, ticker, gen, snap.Quote.Price, len(snap.History), len(snap.Dividends))

	committed := snap
	o.view = View{Ticker: ticker, Snapshot: &committed, Generation: gen}
	return snap, nil
}

// Refresh reloads the current ticker.
func (o *Orchestrator) Refresh(ctx context.Context) (models.MarketSnapshot, error) {
	ticker := o.State().Ticker
	if ticker == "" {
		return models.MarketSnapshot{}, errors.NewValidationError("ticker", "", "no ticker loaded")
	}
	return o.Load(ctx, ticker)
}

func (o *Orchestrator) fetch(ctx context.Context, ticker string) (models.MarketSnapshot, error) {
	var (
		quote     models.Quote
		history   []models.PricePoint
		dividends []models.Dividend
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q, err := o.source.Quote(gctx, ticker)
		if err != nil {
			return dataError("quote", ticker, err)
		}
		quote = q
		return nil
	})
	g.Go(func() error {
		h, err := o.source.History(gctx, ticker, o.historyDays)
		if err != nil {
			return dataError("history", ticker, err)
		}
		history = h
		return nil
	})
	g.Go(func() error {
		d, err := o.source.Dividends(gctx, ticker, o.dividendLimit)
		if err != nil {
			return dataError("dividends", ticker, err)
		}
		dividends = d
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.MarketSnapshot{}, err
	}

	return models.MarketSnapshot{
		Ticker:    ticker,
		Quote:     quote,
		History:   windowHistory(history, o.historyDays),
		Dividends: recentDividends(dividends, o.dividendLimit),
	}, nil
}

func dataError(dataType, ticker string, err error) error {
	return errors.NewDataError(dataType, ticker, errors.UserMessage(err), err)
}

// windowHistory sorts points chronologically and keeps the most recent days
// entries.
func windowHistory(points []models.PricePoint, days int) []models.PricePoint {
	out := append([]models.PricePoint(nil), points...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	if len(out) > days {
		out = out[len(out)-days:]
	}
	return out
}

// recentDividends sorts dividends most recent first and keeps limit entries.
func recentDividends(divs []models.Dividend, limit int) []models.Dividend {
	out := append([]models.Dividend(nil), divs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
