package tx

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/chronicleworks/chronicle/internal/prov/id"
)

// stateAddressSize is the fixed address width the ledger uses for every
// record (spec §6.2: "a 16-byte blake2 hash of a type-tagged identifier
// string").
const stateAddressSize = 16

// Address renders the hex-encoded 16-byte blake2b digest of a
// type-tagged identifier string. The three opa.* forms come from spec
// §6.2 directly; ProvenanceAddress below covers "(namespace-uuid,
// record-iri)" for ledger-addressed PROV entries.
func Address(typeTag string) (string, error) {
	h, err := blake2b.New(stateAddressSize, nil)
	if err != nil {
		return "", fmt.Errorf("tx: blake2b init: %w", err)
	}

	if _, err := h.Write([]byte(typeTag)); err != nil {
		return "", fmt.Errorf("tx: blake2b write: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// PolicyBundleAddress, PolicyMetaAddress and PolicyKeysAddress are the
// three well-known opa.* address families (spec §6.2).
func PolicyBundleAddress(policyID string) (string, error) {
	return Address("opa:policy:binary:" + policyID)
}

func PolicyMetaAddress(policyID string) (string, error) {
	return Address("opa:policy:meta:" + policyID)
}

func PolicyKeysAddress(name string) (string, error) {
	return Address("opa:keys:" + name)
}

// ProvenanceAddress addresses a single PROV record by (namespace-uuid,
// record-iri), the pairing spec §6.2 calls out separately from the
// opa.* single-string addresses.
func ProvenanceAddress(ns id.NamespaceID, recordIRI string) (string, error) {
	return Address(fmt.Sprintf("prov:%s:%s", ns.UUID.String(), recordIRI))
}
