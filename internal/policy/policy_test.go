package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicleworks/chronicle/internal/identity"
	"github.com/chronicleworks/chronicle/internal/prov/id"
	"github.com/chronicleworks/chronicle/internal/prov/op"
)

func TestReferenceEvaluator_AllowList(t *testing.T) {
	e := NewReferenceEvaluator([]byte("Agent.Create\nActivity.Start\n"))

	ops := []op.Operation{op.AgentExists{NS: id.NamespaceID{ExternalID: "default"}, ExternalID: "bobross"}}

	assert.True(t, e.Evaluate(identity.Identity{Kind: identity.KindJWT, ID: "u"}, ops, "Agent.Create").Allow)
	d := e.Evaluate(identity.Identity{Kind: identity.KindJWT, ID: "u"}, ops, "Entity.Delete")
	assert.False(t, d.Allow)
	assert.Equal(t, "violation of policy rules", d.Reason)
}

func TestReferenceEvaluator_ChronicleAlwaysAllowed(t *testing.T) {
	e := NewReferenceEvaluator([]byte(""))
	assert.True(t, e.Evaluate(identity.Chronicle(), nil, "Anything").Allow)
}

func TestReferenceEvaluator_WildcardAllowsEverything(t *testing.T) {
	e := NewReferenceEvaluator([]byte("*\n"))
	assert.True(t, e.Evaluate(identity.Identity{Kind: identity.KindJWT}, nil, "Whatever.Shape").Allow)
}

func TestGate_Evaluate_FailsClosedWithoutLoadedBundle(t *testing.T) {
	g := NewGate()

	assert.True(t, g.Evaluate(identity.Chronicle(), nil, "Agent.Create").Allow)
	assert.False(t, g.Evaluate(identity.Identity{Kind: identity.KindJWT}, nil, "Agent.Create").Allow)
}

func TestGate_Load_SkipsRebuildWhenHashUnchanged(t *testing.T) {
	g := NewGate()

	bundle := []byte("Agent.Create\n")
	g.Load(bundle)
	first := g.Bundle()

	g.Load([]byte("Agent.Create\n"))
	assert.Equal(t, string(first), string(g.Bundle()))
	assert.True(t, g.Evaluate(identity.Identity{Kind: identity.KindJWT}, nil, "Agent.Create").Allow)
}

func TestGate_Load_UpdatesBundleAndEvaluator(t *testing.T) {
	g := NewGate()

	g.Load([]byte("Agent.Create\n"))
	assert.False(t, g.Evaluate(identity.Identity{Kind: identity.KindJWT}, nil, "Entity.Delete").Allow)

	g.Load([]byte("Entity.Delete\n"))
	assert.True(t, g.Evaluate(identity.Identity{Kind: identity.KindJWT}, nil, "Entity.Delete").Allow)
	assert.Equal(t, "Entity.Delete\n", string(g.Bundle()))
}

func TestGate_BootstrapRoot_OnceOnly(t *testing.T) {
	g := NewGate()

	require.NoError(t, g.BootstrapRoot("deadbeef"))

	err := g.BootstrapRoot("c0ffee")
	require.Error(t, err)
}

func TestGate_RegisterKey_OverwriteSemantics(t *testing.T) {
	g := NewGate()

	require.NoError(t, g.RegisterKey("alice", "k1", false))

	err := g.RegisterKey("alice", "k2", false)
	require.Error(t, err, "must reject overwrite without the flag")

	require.NoError(t, g.RegisterKey("alice", "k2", true))

	entry, err := g.GetKey("alice")
	require.NoError(t, err)
	assert.Equal(t, "k2", entry.Current.Key)
}

func TestGate_RotateKey_UnknownKey(t *testing.T) {
	g := NewGate()

	_, err := g.RotateKey("nosuch", "newkey")
	require.Error(t, err)
}

func TestGate_RotateKey_AdvancesVersionAndRecordsExpired(t *testing.T) {
	g := NewGate()
	require.NoError(t, g.RegisterKey("alice", "k1", false))

	rotated, err := g.RotateKey("alice", "k2")
	require.NoError(t, err)
	assert.Equal(t, "k2", rotated.Key)
	assert.Equal(t, 1, rotated.Version)

	entry, err := g.GetKey("alice")
	require.NoError(t, err)
	require.Len(t, entry.Expired, 1)
	assert.Equal(t, "k1", entry.Expired[0].Key)
	assert.Equal(t, 0, entry.Expired[0].Version)
}

func TestGate_GetKey_ReturnsIndependentCopy(t *testing.T) {
	g := NewGate()
	require.NoError(t, g.RegisterKey("alice", "k1", false))

	entry, err := g.GetKey("alice")
	require.NoError(t, err)

	entry.Current.Key = "mutated"

	fresh, err := g.GetKey("alice")
	require.NoError(t, err)
	assert.Equal(t, "k1", fresh.Current.Key)
}

func TestGate_String(t *testing.T) {
	g := NewGate()
	g.Load([]byte("x"))

	assert.Contains(t, g.String(), "hash=")
}
