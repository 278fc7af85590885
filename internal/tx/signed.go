package tx

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/chronicleworks/chronicle/pkg/chronerr"
)

// Signed wraps a marshaled Envelope with the batcher signature the
// dispatcher attaches before calling ledger.PreSubmit (spec §4.7 step 4:
// "sign with batcher key"). The envelope's own SignedIdentity field
// carries the chronicle-signed caller identity; this outer signature
// authenticates the transaction as a whole, including the identity
// envelope.
type Signed struct {
	Envelope  []byte `msgpack:"envelope"`
	Signature string `msgpack:"signature"`
}

func MarshalSigned(s Signed) ([]byte, error) {
	data, err := msgpack.Marshal(s)
	if err != nil {
		return nil, chronerr.ProcessorError{Message: "marshal signed transaction", Err: err}
	}

	return data, nil
}

func UnmarshalSigned(data []byte) (Signed, error) {
	var s Signed
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return Signed{}, chronerr.ProcessorError{Message: "unmarshal signed transaction", Err: err}
	}

	return s, nil
}
