package signing

import "errors"

// Sentinel causes wrapped into chronerr.SecretError.Err, letting callers
// distinguish the signer's four error conditions (spec §4.5) via
// errors.Is without parsing messages.
var (
	ErrInvalidPrivateKey = errors.New("signing: invalid private key")
	ErrInvalidPublicKey  = errors.New("signing: invalid public key")
	ErrNoKeyFound        = errors.New("signing: no key found")
	ErrDecoding          = errors.New("signing: decoding failed")
)
