package signing

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GenerateSignVerify_RoundTrip(t *testing.T) {
	s := NewStore(NewMemoryBackend())
	data := []byte("provenance payload")

	_, err := s.Generate("chronicle", "node-a")
	require.NoError(t, err)

	sig, err := s.Sign("chronicle", "node-a", data)
	require.NoError(t, err)

	ok, err := s.Verify("chronicle", "node-a", data, sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_Verify_RejectsTamperedData(t *testing.T) {
	s := NewStore(NewMemoryBackend())

	_, err := s.Generate("chronicle", "node-a")
	require.NoError(t, err)

	sig, err := s.Sign("chronicle", "node-a", []byte("original"))
	require.NoError(t, err)

	ok, err := s.Verify("chronicle", "node-a", []byte("tampered"), sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_CopySigningKey_CachesAndClones(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewStore(backend)

	_, err := s.Generate("chronicle", "node-a")
	require.NoError(t, err)

	k1, err := s.CopySigningKey("chronicle", "node-a")
	require.NoError(t, err)

	k2, err := s.CopySigningKey("chronicle", "node-a")
	require.NoError(t, err)

	assert.NotSame(t, k1, k2, "CopySigningKey must return an owned clone each call")
	assert.Equal(t, k1.D, k2.D)
}

func TestStore_CopySigningKey_NoKeyFound(t *testing.T) {
	s := NewStore(NewMemoryBackend())

	_, err := s.CopySigningKey("chronicle", "missing")
	require.Error(t, err)
}

func TestStore_NamespaceHelpers(t *testing.T) {
	s := NewStore(NewMemoryBackend())
	for _, ns := range []string{NamespaceChronicle, NamespaceBatcher, NamespaceOPA} {
		_, err := s.Generate(ns, "default")
		require.NoError(t, err)
	}

	data := []byte("x")

	for _, fn := range []struct {
		sign   func([]byte) (string, error)
		verify func([]byte, string) (bool, error)
	}{
		{s.ChronicleSign, s.ChronicleVerify},
		{s.BatcherSign, s.BatcherVerify},
		{s.OPASign, s.OPAVerify},
	} {
		sig, err := fn.sign(data)
		require.NoError(t, err)

		ok, err := fn.verify(data, sig)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestStore_VerifyingKeyHex_MatchesCompressedPubkey(t *testing.T) {
	s := NewStore(NewMemoryBackend())

	k, err := s.Generate("chronicle", "node-a")
	require.NoError(t, err)

	hexKey, err := s.VerifyingKeyHex("chronicle", "node-a")
	require.NoError(t, err)

	expected := crypto.CompressPubkey(&k.PublicKey)
	assert.Equal(t, hex.EncodeToString(expected), hexKey)
}

func TestVerifyWithKeyBytes_RoundTrip(t *testing.T) {
	s := NewStore(NewMemoryBackend())

	_, err := s.Generate("opa", "rotation-authority")
	require.NoError(t, err)

	pub, err := s.VerifyingKey("opa", "rotation-authority")
	require.NoError(t, err)

	sig, err := s.Sign("opa", "rotation-authority", []byte("payload"))
	require.NoError(t, err)

	ok, err := VerifyWithKeyBytes(pub, []byte("payload"), sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyWithKeyBytes_InvalidPublicKey(t *testing.T) {
	_, err := VerifyWithKeyBytes([]byte("not-a-key"), []byte("x"), "00")
	require.ErrorIs(t, err, ErrInvalidPublicKey)
}

func TestSignWithPrivateKeyHex_PublicKeyHexFromPrivateKeyHex_RoundTrip(t *testing.T) {
	k, err := crypto.GenerateKey()
	require.NoError(t, err)

	privHex := hex.EncodeToString(crypto.FromECDSA(k))

	pubHex, err := PublicKeyHexFromPrivateKeyHex(privHex)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(crypto.CompressPubkey(&k.PublicKey)), pubHex)

	sig, err := SignWithPrivateKeyHex(privHex, []byte("payload"))
	require.NoError(t, err)

	pubBytes, err := hex.DecodeString(pubHex)
	require.NoError(t, err)

	ok, err := VerifyWithKeyBytes(pubBytes, []byte("payload"), sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSignWithPrivateKeyHex_InvalidHex(t *testing.T) {
	_, err := SignWithPrivateKeyHex("not-hex", []byte("x"))
	require.ErrorIs(t, err, ErrInvalidPrivateKey)

	_, err = PublicKeyHexFromPrivateKeyHex("not-hex")
	require.ErrorIs(t, err, ErrInvalidPrivateKey)
}

func TestNormalizeLowS_FlipsHighS(t *testing.T) {
	sig := make([]byte, 65)

	highS := new(big.Int).Sub(secp256k1N, big.NewInt(1))
	highSBytes := highS.Bytes()
	copy(sig[64-len(highSBytes):64], highSBytes)
	sig[64] = 0

	out := normalizeLowS(sig)

	s := new(big.Int).SetBytes(out[32:64])
	assert.True(t, s.Cmp(secp256k1HalfN) <= 0)
	assert.Equal(t, byte(1), out[64], "normalizing a flipped S must flip the recovery bit")
}

func TestNormalizeLowS_LeavesLowSUnchanged(t *testing.T) {
	sig := make([]byte, 65)
	sig[63] = 1
	sig[64] = 0

	out := normalizeLowS(sig)
	assert.Equal(t, sig, out)
}

func TestFilesystemBackend_StoreLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	backend := FilesystemBackend{Dir: dir}

	k, err := crypto.GenerateKey()
	require.NoError(t, err)

	require.NoError(t, backend.Store("chronicle", "node-a", k))

	loaded, err := backend.Load("chronicle", "node-a")
	require.NoError(t, err)
	assert.Equal(t, k.D, loaded.D)
}

func TestFilesystemBackend_Load_NoKeyFound(t *testing.T) {
	backend := FilesystemBackend{Dir: t.TempDir()}

	_, err := backend.Load("chronicle", "missing")
	require.ErrorIs(t, err, ErrNoKeyFound)
}

func TestSeededBackend_Deterministic(t *testing.T) {
	b := SeededBackend{Seed: 42}

	k1, err := b.Load("chronicle", "node-a")
	require.NoError(t, err)

	k2, err := b.Load("chronicle", "node-a")
	require.NoError(t, err)

	assert.Equal(t, k1.D, k2.D)

	k3, err := b.Load("chronicle", "node-b")
	require.NoError(t, err)
	assert.NotEqual(t, k1.D, k3.D)
}

func TestSeededBackend_StoreIsReadOnly(t *testing.T) {
	b := SeededBackend{Seed: 1}

	k, err := crypto.GenerateKey()
	require.NoError(t, err)

	err = b.Store("chronicle", "node-a", k)
	require.Error(t, err)
}
