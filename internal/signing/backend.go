package signing

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
)

// FilesystemBackend persists each key as a hex-encoded PEM-less scalar
// under <dir>/<namespace>/<name>.key (spec §4.5: "filesystem (PEM on
// disk)" — chronicled ships the raw scalar rather than a full PEM
// envelope, since the only consumer is this store).
type FilesystemBackend struct {
	Dir string
}

func (b FilesystemBackend) path(namespace, name string) string {
	return filepath.Join(b.Dir, namespace, name+".key")
}

func (b FilesystemBackend) Load(namespace, name string) (*ecdsa.PrivateKey, error) {
	raw, err := os.ReadFile(b.path(namespace, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoKeyFound
		}

		return nil, err
	}

	data, err := hex.DecodeString(string(raw))
	if err != nil {
		return nil, ErrDecoding
	}

	k, err := crypto.ToECDSA(data)
	if err != nil {
		return nil, ErrInvalidPrivateKey
	}

	return k, nil
}

func (b FilesystemBackend) Store(namespace, name string, key *ecdsa.PrivateKey) error {
	dir := filepath.Join(b.Dir, namespace)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	encoded := hex.EncodeToString(crypto.FromECDSA(key))

	return os.WriteFile(b.path(namespace, name), []byte(encoded), 0o600)
}

// MemoryBackend keeps keys only in process memory — used for tests and
// for ephemeral chronicled instances that don't need durable identity.
type MemoryBackend struct {
	mu   sync.Mutex
	keys map[keyRef]*ecdsa.PrivateKey
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{keys: map[keyRef]*ecdsa.PrivateKey{}}
}

func (b *MemoryBackend) Load(namespace, name string) (*ecdsa.PrivateKey, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	k, ok := b.keys[keyRef{namespace, name}]
	if !ok {
		return nil, ErrNoKeyFound
	}

	return k, nil
}

func (b *MemoryBackend) Store(namespace, name string, key *ecdsa.PrivateKey) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.keys[keyRef{namespace, name}] = key

	return nil
}

// SeededBackend derives a deterministic key from (namespace, name) via a
// seeded PRNG, for tests that need stable key material across runs
// without touching the filesystem (spec §4.5: "seeded (deterministic for
// tests)").
type SeededBackend struct {
	Seed int64
}

func (b SeededBackend) Load(namespace, name string) (*ecdsa.PrivateKey, error) {
	h := fnv1a(namespace + "/" + name)
	src := rand.NewSource(b.Seed ^ int64(h)) //nolint:gosec // deterministic test fixture, not production entropy
	rng := rand.New(src)

	// The scalar is read from rng directly: ecdsa.GenerateKey does not
	// promise a key that depends deterministically on its reader.
	scalar := make([]byte, 32)
	for {
		_, _ = rng.Read(scalar)
		if k, err := crypto.ToECDSA(scalar); err == nil {
			return k, nil
		}
	}
}

func (b SeededBackend) Store(namespace, name string, key *ecdsa.PrivateKey) error {
	return fmt.Errorf("signing: seeded backend is read-only for %s/%s", namespace, name)
}

func fnv1a(s string) uint64 {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)

	h := uint64(offset)

	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime
	}

	return h
}
