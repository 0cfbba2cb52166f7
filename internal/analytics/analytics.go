// Package analytics runs the premium dividend analytics requests, gated by
// the caller's subscription tier.
package analytics

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"divtrack/internal/api"
	"divtrack/internal/entitlement"
	"divtrack/internal/logging"
	"divtrack/internal/models"
	"divtrack/internal/sequence"
)

// Remote is the subset of the backend the requesters call.
type Remote interface {
	SafetyScore(ctx context.Context, req api.SafetyRequest) (models.SafetyScore, error)
	CaptureStrategy(ctx context.Context, req api.CaptureRequest) (models.CaptureStrategy, error)
}

// State describes a requester result.
type State string

const (
	// StateLocked means the tier does not include the feature. No request
	// was made.
	StateLocked State = "locked"
	// StateEmpty means the request failed. The failure is logged only.
	StateEmpty State = "empty"
	StateReady State = "ready"
	// StateStale means a newer request started before this one finished.
	StateStale State = "stale"
)

// Result is the outcome of one request.
type Result[T any] struct {
	State      State
	Ticker     string
	Tier       models.Tier
	Value      *T
	Generation uint64
}

// gated runs at most one remote call per trigger, only when the tier allows
// the feature, and remembers the latest result.
type gated[T any] struct {
	feature entitlement.Feature
	logger  zerolog.Logger

	seq    sequence.Counter
	mu     sync.RWMutex
	latest Result[T]
}

func newGated[T any](feature entitlement.Feature, logger zerolog.Logger) *gated[T] {
	return &gated[T]{
		feature: feature,
		logger:  logging.WithComponent(logger, string(feature)),
		latest:  Result[T]{State: StateEmpty},
	}
}

func (g *gated[T]) run(ctx context.Context, ticker string, tier models.Tier, call func(context.Context) (T, error)) Result[T] {
	res := Result[T]{Ticker: ticker, Tier: tier, Generation: g.seq.Next()}
	logger := logging.WithGeneration(logging.WithTicker(g.logger, ticker), res.Generation)

	switch {
	case !entitlement.Allows(tier, g.feature):
		res.State = StateLocked
	default:
		v, err := call(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("analytics request failed")
			res.State = StateEmpty
		} else {
			res.State = StateReady
			res.Value = &v
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.seq.IsCurrent(res.Generation) {
		logger.Debug().Msg("discarding superseded analytics result")
		res.State = StateStale
		return res
	}
	g.latest = res
	return res
}

// Latest returns the most recent non-stale result.
func (g *gated[T]) Latest() Result[T] {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.latest
}
