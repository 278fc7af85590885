// Package engine wires the Apply Engine to a Ledger's applyFn contract
// (spec §4.4 + §4.7): it holds the one authoritative Model a node
// maintains, replays every submitted transaction against it under a
// single mutex, and renders the committed delta as the namespace-scoped
// expanded JSON the Subscription Bus and Persistence Projector consume.
//
// This is the seam chronicled's own process wires inmemledger.New
// through; tests wire it the same way so dry-run (dispatcher) and
// ledger-apply (here) are provably the same code path, per
// inmemledger's own doc comment.
package engine

import (
	"sync"

	"github.com/chronicleworks/chronicle/internal/prov/apply"
	"github.com/chronicleworks/chronicle/internal/prov/model"
	"github.com/chronicleworks/chronicle/internal/signing"
	"github.com/chronicleworks/chronicle/internal/tx"
	"github.com/chronicleworks/chronicle/pkg/chronerr"
)

// State holds the ledger's one authoritative Model plus the batcher
// verifying key transactions must be signed with.
type State struct {
	signer *signing.Store

	mu    sync.Mutex
	model *model.Model
}

func New(signer *signing.Store) *State {
	return &State{signer: signer, model: model.New()}
}

// ApplyFn is shaped to satisfy inmemledger.New's applyFn parameter
// directly: payload is a tx.Signed-wrapped, batcher-signed tx.Envelope.
func (s *State) ApplyFn(correlationID string, payload []byte) ([]byte, string) {
	delta, err := s.apply(payload)
	if err != nil {
		if c, ok := err.(chronerr.Contradiction); ok {
			return nil, c.Error()
		}
		// Structural failures (bad signature, malformed envelope) are
		// not a PROV contradiction; surface them as one anyway so the
		// submission still resolves to Contradicted rather than
		// hanging the caller — the reason string carries the detail.
		return nil, err.Error()
	}

	return delta, ""
}

func (s *State) apply(payload []byte) ([]byte, error) {
	signed, err := tx.UnmarshalSigned(payload)
	if err != nil {
		return nil, err
	}

	ok, err := s.signer.BatcherVerify(signed.Envelope, signed.Signature)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, chronerr.SecretError{Namespace: signing.NamespaceBatcher, Name: "default", Message: "invalid batcher signature"}
	}

	envelope, err := tx.Unmarshal(signed.Envelope)
	if err != nil {
		return nil, err
	}

	if len(envelope.Payload) == 0 {
		return nil, nil
	}

	ns := envelope.Payload[0].Namespace()

	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := apply.Apply(s.model, envelope.Payload)
	if err != nil {
		return nil, err
	}

	s.model = result.Model

	if len(result.Delta) == 0 {
		return nil, nil
	}

	return s.model.ToExpandedJSON(ns)
}

// Snapshot returns a defensive copy of the authoritative model, used by
// GetStateEntry-style reads that bypass the dispatcher's own mirror.
func (s *State) Snapshot() *model.Model {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.model.Clone()
}
