// Package tx implements the wire transaction payload (spec §6.1): the
// tuple {version, correlation-id, span-id, payload, signed-identity} that
// the API Dispatcher signs with the batcher key and submits to the
// ledger. Encoding uses the same self-describing msgpack codec the
// ledger transport speaks (internal/ledger/grpcledger).
package tx

import (
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/chronicleworks/chronicle/internal/identity"
	"github.com/chronicleworks/chronicle/internal/prov/op"
	"github.com/chronicleworks/chronicle/pkg/chronerr"
)

// Version is the current wire format version. The field is carried on
// every envelope so a future incompatible change can be detected by
// readers rather than silently misparsed.
const Version = 1

// Envelope is the signed, submittable unit (spec §6.1). CorrelationID is
// 16 bytes (a UUID), SpanID is an opaque u64 the caller correlates with
// its own tracing spans.
type Envelope struct {
	Version        int                 `msgpack:"version"`
	CorrelationID  uuid.UUID           `msgpack:"correlationId"`
	SpanID         uint64              `msgpack:"spanId"`
	Payload        []op.Operation      `msgpack:"-"`
	SignedIdentity identity.Envelope   `msgpack:"signedIdentity"`
}

// wireEnvelope is the on-the-wire shape: Payload is rendered through the
// operations.go tagged-record codec instead of msgpack's default struct
// encoding, since op.Operation is an interface.
type wireEnvelope struct {
	Version        int               `msgpack:"version"`
	CorrelationID  uuid.UUID         `msgpack:"correlationId"`
	SpanID         uint64            `msgpack:"spanId"`
	Payload        []wireOp          `msgpack:"payload"`
	SignedIdentity identity.Envelope `msgpack:"signedIdentity"`
}

// Marshal renders e to its binary wire form.
func Marshal(e Envelope) ([]byte, error) {
	wire := wireEnvelope{
		Version:        e.Version,
		CorrelationID:  e.CorrelationID,
		SpanID:         e.SpanID,
		SignedIdentity: e.SignedIdentity,
	}

	for _, o := range e.Payload {
		w, err := encodeOp(o)
		if err != nil {
			return nil, err
		}

		wire.Payload = append(wire.Payload, w)
	}

	data, err := msgpack.Marshal(wire)
	if err != nil {
		return nil, chronerr.ProcessorError{Message: "marshal transaction envelope", Err: err}
	}

	return data, nil
}

// Unmarshal parses data produced by Marshal. Unknown fields do not
// round-trip: an operation body field its kind does not define is
// discarded by decodeOp in operations.go, and msgpack's default struct
// decoder skips unknown top-level envelope fields.
func Unmarshal(data []byte) (Envelope, error) {
	var wire wireEnvelope
	if err := msgpack.Unmarshal(data, &wire); err != nil {
		return Envelope{}, chronerr.ProcessorError{Message: "unmarshal transaction envelope", Err: err}
	}

	e := Envelope{
		Version:        wire.Version,
		CorrelationID:  wire.CorrelationID,
		SpanID:         wire.SpanID,
		SignedIdentity: wire.SignedIdentity,
	}

	for _, w := range wire.Payload {
		o, err := decodeOp(w)
		if err != nil {
			return Envelope{}, err
		}

		e.Payload = append(e.Payload, o)
	}

	return e, nil
}

// NewCorrelationID mints a fresh client-chosen correlation id (spec §2
// GLOSSARY: "stable across retries" — callers persist and reuse it
// across a retried submission rather than calling this again).
func NewCorrelationID() uuid.UUID {
	return uuid.New()
}
