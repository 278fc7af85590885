// Package inmemledger is an in-process reference Ledger for tests and
// single-node deployments: a serialized block list with immediate
// finality, no transport, no reconnect.
package inmemledger

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/chronicleworks/chronicle/internal/ledger"
)

type submittable struct {
	correlationID string
	payload       []byte
}

func (s submittable) CorrelationID() string { return s.correlationID }

type block struct {
	id    string
	pos   uint64
	event ledger.Event
}

// Ledger holds every committed block in memory and fans out new events to
// subscribers registered via StateUpdates.
type Ledger struct {
	mu       sync.Mutex
	blocks   []block
	subs     []chan ledger.Event
	applyFn  func(correlationID string, payload []byte) (delta []byte, contradictionReason string)
}

// New constructs an in-memory ledger. applyFn is called synchronously for
// every Submit to decide whether the submission commits or contradicts —
// chronicled wires this to the Apply Engine so dry-run and ledger-apply
// share one code path.
func New(applyFn func(correlationID string, payload []byte) (delta []byte, contradictionReason string)) *Ledger {
	return &Ledger{applyFn: applyFn}
}

func (l *Ledger) PreSubmit(ctx context.Context, tx []byte) (ledger.Submittable, error) {
	return submittable{correlationID: uuid.NewString(), payload: tx}, nil
}

func (l *Ledger) Submit(ctx context.Context, consistency ledger.Consistency, sub ledger.Submittable) (string, error) {
	s := sub.(submittable)

	delta, reason := l.applyFn(s.correlationID, s.payload)

	l.mu.Lock()

	pos := uint64(len(l.blocks))
	id := uuid.NewString()

	var ev ledger.Event
	if reason != "" {
		ev = ledger.Event{Kind: ledger.EventContradicted, CorrelationID: s.correlationID, BlockID: id, Position: pos, Reason: reason}
	} else {
		ev = ledger.Event{Kind: ledger.EventCommitted, CorrelationID: s.correlationID, BlockID: id, Position: pos, Delta: delta}
	}

	l.blocks = append(l.blocks, block{id: id, pos: pos, event: ev})
	subs := append([]chan ledger.Event(nil), l.subs...)

	l.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}

	return s.correlationID, nil
}

func (l *Ledger) StateUpdates(ctx context.Context, from ledger.Position, limit *int) (<-chan ledger.Event, error) {
	l.mu.Lock()

	out := make(chan ledger.Event, 256)

	start := 0

	switch from.Kind {
	case ledger.PositionHead:
		start = len(l.blocks)
	case ledger.PositionFirst:
		start = 0
	case ledger.PositionBlock:
		for i, b := range l.blocks {
			if b.id == from.BlockID {
				start = i + 1
				break
			}
		}
	}

	historical := append([]block(nil), l.blocks[start:]...)
	l.subs = append(l.subs, out)

	l.mu.Unlock()

	go func() {
		sent := 0

		for _, b := range historical {
			if limit != nil && sent >= *limit {
				return
			}

			select {
			case out <- b.event:
				sent++
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		<-ctx.Done()

		l.mu.Lock()
		defer l.mu.Unlock()

		for i, ch := range l.subs {
			if ch == out {
				l.subs = append(l.subs[:i], l.subs[i+1:]...)
				break
			}
		}

		close(out)
	}()

	return out, nil
}

func (l *Ledger) GetStateEntry(ctx context.Context, pallet, name, key string) ([]byte, error) {
	return nil, nil
}

func (l *Ledger) BlockHeight(ctx context.Context) (uint64, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.blocks) == 0 {
		return 0, "", nil
	}

	last := l.blocks[len(l.blocks)-1]

	return last.pos, last.id, nil
}
