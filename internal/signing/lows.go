package signing

import "math/big"

// secp256k1N is the curve order; secp256k1HalfN is used to decide whether
// S needs flipping to its low-S canonical form (BIP-0062 / low-S rule),
// required by downstream consumers that reject malleable signatures
// (spec §4.5).
var (
	secp256k1N, _  = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

// normalizeLowS rewrites a 65-byte [R || S || V] signature produced by
// crypto.Sign so that S <= N/2, flipping V's parity bit to match.
func normalizeLowS(sig []byte) []byte {
	if len(sig) != 65 {
		return sig
	}

	s := new(big.Int).SetBytes(sig[32:64])
	if s.Cmp(secp256k1HalfN) <= 0 {
		return sig
	}

	out := make([]byte, 65)
	copy(out, sig)

	lowS := new(big.Int).Sub(secp256k1N, s)
	lowSBytes := lowS.Bytes()
	copy(out[64-len(lowSBytes):64], lowSBytes)

	for i := 32; i < 64-len(lowSBytes); i++ {
		out[i] = 0
	}

	out[64] ^= 1

	return out
}
