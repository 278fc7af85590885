package policy

import (
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicleworks/chronicle/internal/signing"
)

func TestVerifyRotation_DoubleSignatureSucceeds(t *testing.T) {
	store := signing.NewStore(signing.NewMemoryBackend())

	_, err := store.Generate("opa", "alice-current")
	require.NoError(t, err)

	currentKeyHex, err := store.VerifyingKeyHex("opa", "alice-current")
	require.NoError(t, err)

	_, err = store.Generate("opa", "alice-next")
	require.NoError(t, err)

	newKeyHex, err := store.VerifyingKeyHex("opa", "alice-next")
	require.NoError(t, err)

	g := NewGate()
	require.NoError(t, g.RegisterKey("alice", currentKeyHex, false))

	payload := RotationPayload{Name: "alice", NewKey: newKeyHex}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	prevSig, err := store.Sign("opa", "alice-current", raw)
	require.NoError(t, err)

	newSig, err := store.Sign("opa", "alice-next", raw)
	require.NoError(t, err)

	rotated, err := g.VerifyRotation("alice", newKeyHex, prevSig, newSig)
	require.NoError(t, err)
	assert.Equal(t, newKeyHex, rotated.Key)
	assert.Equal(t, 1, rotated.Version)
}

func TestVerifyRotation_RejectsBadPreviousSignature(t *testing.T) {
	store := signing.NewStore(signing.NewMemoryBackend())

	_, err := store.Generate("opa", "alice-current")
	require.NoError(t, err)

	currentKeyHex, err := store.VerifyingKeyHex("opa", "alice-current")
	require.NoError(t, err)

	_, err = store.Generate("opa", "alice-next")
	require.NoError(t, err)

	newKeyHex, err := store.VerifyingKeyHex("opa", "alice-next")
	require.NoError(t, err)

	g := NewGate()
	require.NoError(t, g.RegisterKey("alice", currentKeyHex, false))

	newSig, err := store.Sign("opa", "alice-next", []byte("whatever"))
	require.NoError(t, err)

	bogusSig := hex.EncodeToString(make([]byte, 65))

	_, err = g.VerifyRotation("alice", newKeyHex, bogusSig, newSig)
	require.Error(t, err)
}

func TestVerifyRotation_UnknownKeyName(t *testing.T) {
	g := NewGate()

	_, err := g.VerifyRotation("nosuch", "dead", "00", "00")
	require.Error(t, err)
}
