package policy

import (
	"encoding/hex"
	"encoding/json"

	"github.com/chronicleworks/chronicle/internal/signing"
	"github.com/chronicleworks/chronicle/pkg/chronerr"
)

// RotationPayload is the {new_key, name} tuple signed by both the
// previous and the new key in the double-signature rotation protocol
// (spec §4.9).
type RotationPayload struct {
	Name   string `json:"name"`
	NewKey string `json:"new_key"`
}

// VerifyRotation checks that prevSig verifies against the key currently
// stored for name and newSig verifies against newKeyHex, then applies
// the rotation. Both signatures must check out before any state changes.
func (g *Gate) VerifyRotation(name, newKeyHex, prevSig, newSig string) (VersionedKey, error) {
	current, err := g.GetKey(name)
	if err != nil {
		return VersionedKey{}, err
	}

	payload := RotationPayload{Name: name, NewKey: newKeyHex}

	raw, err := json.Marshal(payload)
	if err != nil {
		return VersionedKey{}, chronerr.PolicyLoaderError{PolicyID: name, Message: "marshal rotation payload", Err: err}
	}

	prevKeyBytes, err := hex.DecodeString(current.Current.Key)
	if err != nil {
		return VersionedKey{}, chronerr.PolicyLoaderError{PolicyID: name, Message: "decode current key", Err: err}
	}

	newKeyBytes, err := hex.DecodeString(newKeyHex)
	if err != nil {
		return VersionedKey{}, chronerr.PolicyLoaderError{PolicyID: name, Message: "decode new key", Err: err}
	}

	if ok, err := signing.VerifyWithKeyBytes(prevKeyBytes, raw, prevSig); err != nil || !ok {
		return VersionedKey{}, chronerr.PolicyLoaderError{PolicyID: name, Message: "previous-key signature does not verify", Err: err}
	}

	if ok, err := signing.VerifyWithKeyBytes(newKeyBytes, raw, newSig); err != nil || !ok {
		return VersionedKey{}, chronerr.PolicyLoaderError{PolicyID: name, Message: "new-key signature does not verify", Err: err}
	}

	return g.RotateKey(name, newKeyHex)
}
