// Package ledger defines the capability-set contract the API Dispatcher
// and Persistence Projector use to talk to the replicated ledger (spec
// §4.6), independent of transport. grpcledger and inmemledger provide the
// gRPC-backed and in-memory reference implementations.
package ledger

import "context"

// Consistency selects how hard Submit waits for finality.
type Consistency int

const (
	Weak Consistency = iota
	Strong
)

// Position selects where a StateUpdates stream should resume from.
type Position struct {
	Kind    PositionKind
	BlockID string
}

type PositionKind int

const (
	PositionHead PositionKind = iota
	PositionFirst
	PositionBlock
)

func Head() Position                { return Position{Kind: PositionHead} }
func First() Position                { return Position{Kind: PositionFirst} }
func Block(id string) Position       { return Position{Kind: PositionBlock, BlockID: id} }

// Submittable is an opaque, transport-specific payload produced by
// PreSubmit and consumed by Submit.
type Submittable interface {
	CorrelationID() string
}

// EventKind tags a StateUpdates event (spec §4.6: "Committed" or
// "Contradicted").
type EventKind int

const (
	EventCommitted EventKind = iota
	EventContradicted
)

// Event is one entry in the StateUpdates stream.
type Event struct {
	Kind          EventKind
	CorrelationID string
	BlockID       string
	Position      uint64
	Delta         []byte // canonical JSON delta for EventCommitted
	Reason        string // contradiction reason for EventContradicted
}

// Ledger is the capability-set the rest of the system depends on.
// Implementations must retry connect/reconnect with unbounded exponential
// backoff (spec §4.6 "Retry policy").
type Ledger interface {
	PreSubmit(ctx context.Context, tx []byte) (Submittable, error)
	Submit(ctx context.Context, consistency Consistency, sub Submittable) (string, error)
	StateUpdates(ctx context.Context, from Position, limit *int) (<-chan Event, error)
	GetStateEntry(ctx context.Context, pallet, name, key string) ([]byte, error)
	BlockHeight(ctx context.Context) (uint64, string, error)
}
