package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicleworks/chronicle/internal/signing"
)

func TestSignVerify_Envelope_RoundTrip(t *testing.T) {
	store := signing.NewStore(signing.NewMemoryBackend())

	_, err := store.Generate(signing.NamespaceChronicle, "default")
	require.NoError(t, err)

	id := Identity{Kind: KindJWT, ID: "abc", Claims: map[string]string{"sub": "bobross"}}

	env, err := Sign(store, id)
	require.NoError(t, err)
	assert.NotEmpty(t, env.Signature)
	assert.NotEmpty(t, env.VerifyingKey)

	out, err := Verify(store, env)
	require.NoError(t, err)
	assert.Equal(t, id, out)
}

func TestVerify_RejectsTamperedEnvelope(t *testing.T) {
	store := signing.NewStore(signing.NewMemoryBackend())

	_, err := store.Generate(signing.NamespaceChronicle, "default")
	require.NoError(t, err)

	env, err := Sign(store, Chronicle())
	require.NoError(t, err)

	env.IdentityJSON = []byte(`{"Kind":"Chronicle","ID":"impostor","Claims":null}`)

	_, err = Verify(store, env)
	require.Error(t, err)
}
