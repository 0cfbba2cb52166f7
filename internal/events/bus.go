// Package events distributes ticker, tier and session changes to the
// components that react to them.
package events

import (
	"context"
	"sync"
	"time"

	"divtrack/internal/models"
)

// Kind identifies an event type.
type Kind string

const (
	TickerChanged    Kind = "ticker_changed"
	TierChanged      Kind = "tier_changed"
	SessionChanged   Kind = "session_changed"
	RefreshRequested Kind = "refresh_requested"
)

// Event is one notification. Only the fields relevant to Kind are set.
type Event struct {
	Kind    Kind
	Ticker  string
	Tier    models.Tier
	Session models.Session
	At      time.Time
}

// Publisher is implemented by anything events can be sent to.
type Publisher interface {
	Publish(Event)
}

// BusConfig holds configuration for the Bus.
type BusConfig struct {
	// BufferSize is the size of the internal event queue.
	BufferSize int
	// SubscriberBufferSize is the size of each subscriber's channel buffer.
	SubscriberBufferSize int
}

// DefaultBusConfig returns the default bus configuration.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		BufferSize:           256,
		SubscriberBufferSize: 64,
	}
}

type subscriber struct {
	ch      chan Event
	dropped int
}

// Bus fans events out to subscribers of each kind. Publish never blocks.
// When the queue is full, events overflow into a pending list that keeps
// only the newest event of each kind, so the latest ticker, tier and
// session always arrive. Delivery of those kinds waits for a full
// subscriber buffer; refresh requests are dropped instead.
type Bus struct {
	config      BusConfig
	mu          sync.RWMutex
	subscribers map[Kind][]*subscriber
	queue       chan Event

	pendMu  sync.Mutex
	pending []Event
	wake    chan struct{}

	runMu   sync.Mutex
	started bool
	stopped bool
	done    chan struct{}
	exited  chan struct{}

	statsMu   sync.Mutex
	published uint64
	delivered uint64
	dropped   uint64
	coalesced uint64
}

// NewBus creates a bus with default configuration.
func NewBus() *Bus {
	return NewBusWithConfig(DefaultBusConfig())
}

// NewBusWithConfig creates a bus with custom configuration.
func NewBusWithConfig(config BusConfig) *Bus {
	return &Bus{
		config:      config,
		subscribers: make(map[Kind][]*subscriber),
		queue:       make(chan Event, config.BufferSize),
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
		exited:      make(chan struct{}),
	}
}

// Start runs the distribution loop until ctx is done or Stop is called.
func (b *Bus) Start(ctx context.Context) {
	b.runMu.Lock()
	defer b.runMu.Unlock()
	if b.started || b.stopped {
		return
	}
	b.started = true

	go b.loop(ctx)
}

func (b *Bus) loop(ctx context.Context) {
	defer close(b.exited)
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case ev := <-b.queue:
			b.broadcast(ctx, ev)
		case <-b.wake:
			for _, ev := range b.takeOverflow() {
				b.broadcast(ctx, ev)
			}
		}
	}
}

// takeOverflow returns the queued events followed by the pending ones.
// Publish sends nothing to the queue while events are pending, so queued
// events are always older.
func (b *Bus) takeOverflow() []Event {
	b.pendMu.Lock()
	defer b.pendMu.Unlock()

	var out []Event
drain:
	for {
		select {
		case ev := <-b.queue:
			out = append(out, ev)
		default:
			break drain
		}
	}
	out = append(out, b.pending...)
	b.pending = nil
	return out
}

// Stop ends distribution and closes every subscriber channel.
func (b *Bus) Stop() {
	b.runMu.Lock()
	if !b.started || b.stopped {
		b.runMu.Unlock()
		return
	}
	b.stopped = true
	close(b.done)
	b.runMu.Unlock()

	<-b.exited

	b.mu.Lock()
	defer b.mu.Unlock()
	closed := make(map[*subscriber]bool)
	for kind, subs := range b.subscribers {
		for _, sub := range subs {
			if !closed[sub] {
				close(sub.ch)
				closed[sub] = true
			}
		}
		delete(b.subscribers, kind)
	}
}

// Subscribe returns a channel receiving events of the given kinds.
func (b *Bus) Subscribe(kinds ...Kind) <-chan Event {
	sub := &subscriber{ch: make(chan Event, b.config.SubscriberBufferSize)}

	b.mu.Lock()
	for _, k := range kinds {
		b.subscribers[k] = append(b.subscribers[k], sub)
	}
	b.mu.Unlock()

	return sub.ch
}

// Publish queues ev for distribution. If the queue is full, ev replaces any
// pending event of the same kind.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.pendMu.Lock()
	if len(b.pending) == 0 {
		select {
		case b.queue <- ev:
			b.pendMu.Unlock()
			b.count(&b.published)
			return
		default:
		}
	}
	replaced := false
	for i, p := range b.pending {
		if p.Kind == ev.Kind {
			b.pending = append(b.pending[:i], b.pending[i+1:]...)
			replaced = true
			break
		}
	}
	b.pending = append(b.pending, ev)
	b.pendMu.Unlock()

	b.count(&b.published)
	if replaced {
		b.count(&b.coalesced)
	}
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// mustDeliver reports whether delivery of kind waits for subscriber room.
func mustDeliver(kind Kind) bool {
	return kind != RefreshRequested
}

func (b *Bus) broadcast(ctx context.Context, ev Event) {
	b.mu.RLock()
	subs := append([]*subscriber(nil), b.subscribers[ev.Kind]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		if mustDeliver(ev.Kind) {
			select {
			case sub.ch <- ev:
				b.count(&b.delivered)
			case <-ctx.Done():
				return
			case <-b.done:
				return
			}
			continue
		}
		select {
		case sub.ch <- ev:
			b.count(&b.delivered)
		default:
			sub.dropped++
			b.count(&b.dropped)
		}
	}
}

func (b *Bus) count(n *uint64) {
	b.statsMu.Lock()
	*n++
	b.statsMu.Unlock()
}

// Stats contains bus counters. Coalesced counts pending events replaced by
// a newer one of the same kind.
type Stats struct {
	Published uint64
	Delivered uint64
	Dropped   uint64
	Coalesced uint64
}

// Stats returns the bus counters.
func (b *Bus) Stats() Stats {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return Stats{Published: b.published, Delivered: b.delivered, Dropped: b.dropped, Coalesced: b.coalesced}
}
