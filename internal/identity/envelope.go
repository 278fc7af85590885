package identity

import (
	"encoding/json"

	"github.com/chronicleworks/chronicle/internal/signing"
	"github.com/chronicleworks/chronicle/pkg/chronerr"
)

// Envelope is the {identity-json, signature, verifying-key} tuple the
// dispatcher signs with the chronicle key and attaches to every ledger
// transaction (spec §4.10). Verify checks such an envelope; the projector
// and the engine do not call it, so nothing verifies the signature before
// a committed transaction is applied or projected.
type Envelope struct {
	IdentityJSON []byte `json:"identityJson"`
	Signature    string `json:"signature"`
	VerifyingKey string `json:"verifyingKey"`
}

// Sign produces the envelope for id using the chronicle signing key.
func Sign(store *signing.Store, id Identity) (Envelope, error) {
	raw, err := json.Marshal(id)
	if err != nil {
		return Envelope{}, chronerr.IdentityError{Message: "marshal identity", Err: err}
	}

	sig, err := store.ChronicleSign(raw)
	if err != nil {
		return Envelope{}, chronerr.IdentityError{Message: "sign identity", Err: err}
	}

	vk, err := store.VerifyingKeyHex(signing.NamespaceChronicle, "default")
	if err != nil {
		return Envelope{}, chronerr.IdentityError{Message: "verifying key", Err: err}
	}

	return Envelope{IdentityJSON: raw, Signature: sig, VerifyingKey: vk}, nil
}

// Verify checks the envelope's signature and decodes the identity.
func Verify(store *signing.Store, env Envelope) (Identity, error) {
	ok, err := store.ChronicleVerify(env.IdentityJSON, env.Signature)
	if err != nil {
		return Identity{}, chronerr.IdentityError{Message: "verify identity signature", Err: err}
	}

	if !ok {
		return Identity{}, chronerr.IdentityError{Message: "identity signature does not verify"}
	}

	var id Identity
	if err := json.Unmarshal(env.IdentityJSON, &id); err != nil {
		return Identity{}, chronerr.IdentityError{Message: "unmarshal identity", Err: err}
	}

	return id, nil
}
