// Package signing implements the namespaced secp256k1 key store (spec
// §4.5): sign/verify/verifying_key over keys addressed by
// (namespace, name), with well-known accessors for the chronicle,
// batcher and opa namespaces.
package signing

import (
	"crypto/ecdsa"
	"encoding/hex"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/chronicleworks/chronicle/pkg/chronerr"
)

const (
	NamespaceChronicle = "chronicle"
	NamespaceBatcher   = "batcher"
	NamespaceOPA       = "opa"
)

type keyRef struct {
	namespace string
	name      string
}

// Backend persists and retrieves the raw secp256k1 scalar for a key.
// The filesystem, in-memory and seeded implementations in backend.go
// satisfy this; there is no remote secret-store implementation.
type Backend interface {
	Load(namespace, name string) (*ecdsa.PrivateKey, error)
	Store(namespace, name string, key *ecdsa.PrivateKey) error
}

// Store holds key material behind a mutex; CopySigningKey clones the key
// out so signing itself is not serialized (spec §5 "Shared resources").
type Store struct {
	mu      sync.Mutex
	backend Backend
	cache   map[keyRef]*ecdsa.PrivateKey
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend, cache: map[keyRef]*ecdsa.PrivateKey{}}
}

// CopySigningKey returns an owned clone of the private key for
// (namespace, name), loading it from the backend on first access.
func (s *Store) CopySigningKey(namespace, name string) (*ecdsa.PrivateKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := keyRef{namespace, name}

	if k, ok := s.cache[ref]; ok {
		return cloneKey(k), nil
	}

	k, err := s.backend.Load(namespace, name)
	if err != nil {
		return nil, chronerr.SecretError{Namespace: namespace, Name: name, Message: "load failed", Err: err}
	}

	s.cache[ref] = k

	return cloneKey(k), nil
}

// Generate creates a fresh key for (namespace, name) and persists it via
// the backend, overwriting any cached copy.
func (s *Store) Generate(namespace, name string) (*ecdsa.PrivateKey, error) {
	k, err := crypto.GenerateKey()
	if err != nil {
		return nil, chronerr.SecretError{Namespace: namespace, Name: name, Message: "key generation failed", Err: err}
	}

	if err := s.backend.Store(namespace, name, k); err != nil {
		return nil, chronerr.SecretError{Namespace: namespace, Name: name, Message: "store failed", Err: err}
	}

	s.mu.Lock()
	s.cache[keyRef{namespace, name}] = k
	s.mu.Unlock()

	return cloneKey(k), nil
}

// Sign signs bytes with the key at (namespace, name) and returns a
// low-S-normalized, hex-encoded signature (spec §4.5: "Batcher and OPA
// signatures must be in low-S normalized form").
func (s *Store) Sign(namespace, name string, data []byte) (string, error) {
	k, err := s.CopySigningKey(namespace, name)
	if err != nil {
		return "", err
	}

	digest := crypto.Keccak256(data)

	sig, err := crypto.Sign(digest, k)
	if err != nil {
		return "", chronerr.SecretError{Namespace: namespace, Name: name, Message: "sign failed", Err: err}
	}

	sig = normalizeLowS(sig)

	return hex.EncodeToString(sig), nil
}

// Verify checks a hex-encoded signature produced by Sign against the
// verifying key at (namespace, name).
func (s *Store) Verify(namespace, name string, data []byte, sigHex string) (bool, error) {
	pub, err := s.VerifyingKey(namespace, name)
	if err != nil {
		return false, err
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, chronerr.SecretError{Namespace: namespace, Name: name, Message: "decoding signature failed", Err: err}
	}

	if len(sig) < 64 {
		return false, chronerr.SecretError{Namespace: namespace, Name: name, Message: "signature too short"}
	}

	digest := crypto.Keccak256(data)

	return crypto.VerifySignature(pub, digest, sig[:64]), nil
}

// VerifyingKey returns the 33-byte compressed public key for
// (namespace, name) as raw bytes.
func (s *Store) VerifyingKey(namespace, name string) ([]byte, error) {
	k, err := s.CopySigningKey(namespace, name)
	if err != nil {
		return nil, err
	}

	return crypto.CompressPubkey(&k.PublicKey), nil
}

// VerifyingKeyHex is the hex-string form of VerifyingKey, the form
// persisted in Identity and KeyEntry records.
func (s *Store) VerifyingKeyHex(namespace, name string) (string, error) {
	pub, err := s.VerifyingKey(namespace, name)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(pub), nil
}

func (s *Store) ChronicleSign(data []byte) (string, error) { return s.Sign(NamespaceChronicle, "default", data) }
func (s *Store) ChronicleVerify(data []byte, sig string) (bool, error) {
	return s.Verify(NamespaceChronicle, "default", data, sig)
}

func (s *Store) BatcherSign(data []byte) (string, error) { return s.Sign(NamespaceBatcher, "default", data) }
func (s *Store) BatcherVerify(data []byte, sig string) (bool, error) {
	return s.Verify(NamespaceBatcher, "default", data, sig)
}

func (s *Store) OPASign(data []byte) (string, error) { return s.Sign(NamespaceOPA, "default", data) }
func (s *Store) OPAVerify(data []byte, sig string) (bool, error) {
	return s.Verify(NamespaceOPA, "default", data, sig)
}

func cloneKey(k *ecdsa.PrivateKey) *ecdsa.PrivateKey {
	cp := *k
	return &cp
}

// VerifyWithKeyBytes checks a hex-encoded signature against an
// arbitrary compressed secp256k1 public key, not one held in a Store —
// used by the policy engine's key-rotation protocol, which verifies
// against both a previous and a candidate key supplied in the rotation
// transaction itself (spec §4.9).
func VerifyWithKeyBytes(pubKeyBytes, data []byte, sigHex string) (bool, error) {
	if _, err := crypto.DecompressPubkey(pubKeyBytes); err != nil {
		return false, ErrInvalidPublicKey
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, ErrDecoding
	}

	if len(sig) < 64 {
		return false, ErrDecoding
	}

	digest := crypto.Keccak256(data)

	return crypto.VerifySignature(pubKeyBytes, digest, sig[:64]), nil
}

// SignWithPrivateKeyHex signs data with a raw hex-encoded secp256k1
// scalar rather than a key held in a Store — the counterpart operation
// policyctl needs client-side, since a rotation authority's key never
// passes through the node's own signing.Store.
func SignWithPrivateKeyHex(privateKeyHex string, data []byte) (string, error) {
	k, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return "", ErrInvalidPrivateKey
	}

	digest := crypto.Keccak256(data)

	sig, err := crypto.Sign(digest, k)
	if err != nil {
		return "", ErrDecoding
	}

	sig = normalizeLowS(sig)

	return hex.EncodeToString(sig), nil
}

// PublicKeyHexFromPrivateKeyHex derives the compressed public key hex
// for a raw hex-encoded secp256k1 scalar.
func PublicKeyHexFromPrivateKeyHex(privateKeyHex string) (string, error) {
	k, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return "", ErrInvalidPrivateKey
	}

	return hex.EncodeToString(crypto.CompressPubkey(&k.PublicKey)), nil
}
