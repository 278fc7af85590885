// Package subscription implements the in-process commit-notification
// fanout (spec §4.11): a single task reads the ledger's StateUpdates
// stream and broadcasts to per-subscriber bounded queues with a
// drop-oldest lag policy. Subscribers are filtered by correlation id
// only; the bus does not key or filter by event kind, so every subscriber
// receives events of every kind.
package subscription

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/chronicleworks/chronicle/internal/ledger"
	"github.com/chronicleworks/chronicle/pkg/mlog"
)

const defaultQueueDepth = 256

// Subscriber receives ledger.Event values, optionally filtered by
// correlation id. A full queue drops its oldest entry and sets Lagged on
// the event whose enqueue forced the drop, so the subscriber can detect
// the gap when it reaches that event and resync by re-reading
// state (spec §4.11: "subscribers detect the drop and may resync").
type Subscriber struct {
	C             chan Delivery
	correlationID string // empty means "all events"
}

type Delivery struct {
	Event  ledger.Event
	Lagged bool
}

// Bus owns exactly one subscription task per process (spec §5
// "Parallelism"): StateUpdates is read once and fanned out here.
type Bus struct {
	mu       sync.Mutex
	subs     map[*Subscriber]bool
	queueLen int
}

func New() *Bus {
	return &Bus{subs: map[*Subscriber]bool{}, queueLen: defaultQueueDepth}
}

// Subscribe registers a new subscriber. If correlationID is non-empty,
// only events matching it are delivered — used by the dispatcher's
// await-commit step (spec §4.7 step 6).
func (b *Bus) Subscribe(correlationID string) *Subscriber {
	s := &Subscriber{C: make(chan Delivery, b.queueLen), correlationID: correlationID}

	b.mu.Lock()
	b.subs[s] = true
	b.mu.Unlock()

	return s
}

func (b *Bus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()

	close(s.C)
}

func (b *Bus) publish(ev ledger.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for s := range b.subs {
		if s.correlationID != "" && s.correlationID != ev.CorrelationID {
			continue
		}

		delivery := Delivery{Event: ev}

		select {
		case s.C <- delivery:
			continue
		default:
		}

		// Queue full: drop the oldest pending delivery, then enqueue
		// this one flagged as having lagged.
		select {
		case <-s.C:
		default:
		}

		delivery.Lagged = true

		select {
		case s.C <- delivery:
		default:
		}
	}
}

// Run reads l's StateUpdates stream starting at from and publishes every
// event until ctx is cancelled. It is meant to run as the process's
// single subscription task, typically under an errgroup alongside the
// HTTP/gRPC servers.
func (b *Bus) Run(ctx context.Context, l ledger.Ledger, from ledger.Position) error {
	events, err := l.StateUpdates(ctx, from, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}

			b.publish(ev)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunGroup wires Run into g so the caller's lifecycle (shutdown,
// cancellation, first-error propagation) is managed by one errgroup, the
// pattern chronicled's daemon entrypoint uses for all its background
// tasks.
func RunGroup(ctx context.Context, g *errgroup.Group, b *Bus, l ledger.Ledger, from ledger.Position) {
	g.Go(func() error {
		err := b.Run(ctx, l, from)
		if err != nil && ctx.Err() == nil {
			mlog.FromContext(ctx).Errorf("subscription bus stopped: %v", err)
		}

		return err
	})
}
