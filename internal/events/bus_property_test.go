package events

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"divtrack/internal/models"
)

// Property: every subscriber of a kind receives every event of that kind, in
// publish order, while buffers have room.
func TestProperty_SubscribersReceiveEventsInOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("ordered fan-out", prop.ForAll(
		func(subscribers int, tickers []string) bool {
			bus := NewBus()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			chans := make([]<-chan Event, subscribers)
			for i := range chans {
				chans[i] = bus.Subscribe(TickerChanged)
			}
			bus.Start(ctx)
			defer bus.Stop()

			for _, tk := range tickers {
				bus.Publish(Event{Kind: TickerChanged, Ticker: tk})
			}

			for _, ch := range chans {
				for _, want := range tickers {
					select {
					case ev := <-ch:
						if ev.Ticker != want {
							return false
						}
					case <-time.After(2 * time.Second):
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(1, 4),
		gen.SliceOfN(20, gen.Identifier()),
	))

	properties.TestingRun(t)
}

func TestSubscribersOnlySeeTheirKinds(t *testing.T) {
	bus := NewBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tiers := bus.Subscribe(TierChanged)
	all := bus.Subscribe(TierChanged, SessionChanged)
	bus.Start(ctx)
	defer bus.Stop()

	bus.Publish(Event{Kind: SessionChanged})
	bus.Publish(Event{Kind: TierChanged, Tier: "premium"})

	first := <-all
	if first.Kind != SessionChanged {
		t.Fatalf("first event = %s, want session_changed", first.Kind)
	}
	if (<-all).Kind != TierChanged {
		t.Fatal("expected tier_changed on combined subscription")
	}

	ev := <-tiers
	if ev.Kind != TierChanged || ev.Tier != "premium" {
		t.Fatalf("unexpected event %+v", ev)
	}
	select {
	case extra := <-tiers:
		t.Fatalf("tier subscriber got %s", extra.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBusWithConfig(BusConfig{BufferSize: 16, SubscriberBufferSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = bus.Subscribe(RefreshRequested)
	bus.Start(ctx)
	defer bus.Stop()

	for i := 0; i < 5; i++ {
		bus.Publish(Event{Kind: RefreshRequested})
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s := bus.Stats()
		if s.Delivered+s.Dropped == 5 {
			if s.Delivered != 1 {
				t.Errorf("delivered = %d, want 1", s.Delivered)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("events not processed: %+v", bus.Stats())
}

func TestStopClosesSubscriptions(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(TickerChanged)
	bus.Start(context.Background())
	bus.Stop()

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after Stop")
	}
	bus.Stop()
}

func TestFullQueueKeepsLatestOfEachKind(t *testing.T) {
	bus := NewBusWithConfig(BusConfig{BufferSize: 1, SubscriberBufferSize: 16})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bus.Subscribe(TickerChanged, TierChanged)

	bus.Publish(Event{Kind: TickerChanged, Ticker: "A"})
	bus.Publish(Event{Kind: TierChanged, Tier: "premium"})
	bus.Publish(Event{Kind: TierChanged, Tier: "elite"})
	bus.Publish(Event{Kind: TickerChanged, Ticker: "B"})

	if s := bus.Stats(); s.Published != 4 || s.Coalesced != 1 || s.Dropped != 0 {
		t.Fatalf("stats = %+v, want 4 published, 1 coalesced", s)
	}

	bus.Start(ctx)
	defer bus.Stop()

	want := []Event{
		{Kind: TickerChanged, Ticker: "A"},
		{Kind: TierChanged, Tier: "elite"},
		{Kind: TickerChanged, Ticker: "B"},
	}
	for i, w := range want {
		select {
		case ev := <-ch:
			if ev.Kind != w.Kind || ev.Ticker != w.Ticker || ev.Tier != w.Tier {
				t.Fatalf("event %d = %+v, want %+v", i, ev, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("event %d never arrived", i)
		}
	}
}

func TestSlowSubscriberStillGetsEveryTierChange(t *testing.T) {
	bus := NewBusWithConfig(BusConfig{BufferSize: 16, SubscriberBufferSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := bus.Subscribe(TierChanged)
	bus.Start(ctx)
	defer bus.Stop()

	tiers := []string{"free", "premium", "elite", "free", "premium"}
	for _, tier := range tiers {
		bus.Publish(Event{Kind: TierChanged, Tier: models.Tier(tier)})
	}
	time.Sleep(50 * time.Millisecond)

	for _, want := range tiers {
		select {
		case ev := <-ch:
			if string(ev.Tier) != want {
				t.Fatalf("tier = %s, want %s", ev.Tier, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("tier %s never arrived", want)
		}
	}
	if d := bus.Stats().Dropped; d != 0 {
		t.Errorf("dropped = %d, want 0", d)
	}
}

func TestStopReturnsWhileDeliveryWaits(t *testing.T) {
	bus := NewBusWithConfig(BusConfig{BufferSize: 16, SubscriberBufferSize: 1})
	ch := bus.Subscribe(SessionChanged)
	bus.Start(context.Background())

	for i := 0; i < 3; i++ {
		bus.Publish(Event{Kind: SessionChanged})
	}

	stopped := make(chan struct{})
	go func() {
		bus.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked behind a full subscriber")
	}
	for range ch {
	}
}
