package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicleworks/chronicle/internal/prov/id"
)

func testNamespace(t *testing.T) id.NamespaceID {
	t.Helper()
	return id.NamespaceID{ExternalID: "default", UUID: uuid.New()}
}

func TestAddAgent_Idempotent(t *testing.T) {
	m := New()
	ns := testNamespace(t)

	a1 := m.AddAgent(ns, "bobross")
	a1.Attributes["type"] = NewStringAttribute("type", "artist")

	a2 := m.AddAgent(ns, "bobross")

	assert.Same(t, a1, a2)
	assert.Len(t, m.Agents, 1)
}

func TestAddAssociation_IdempotentKeepsFirstRecorded(t *testing.T) {
	m := New()
	ns := testNamespace(t)

	k := AssociationKey{Namespace: ns, Agent: "bobross", Activity: "paint", Role: "curator"}

	first := m.AddAssociation(k)
	second := m.AddAssociation(k)

	assert.Equal(t, first.Recorded, second.Recorded)
	assert.Len(t, m.Associations, 1)
}

func TestClone_IsIndependent(t *testing.T) {
	m := New()
	ns := testNamespace(t)

	a := m.AddAgent(ns, "bobross")
	a.Attributes["type"] = NewStringAttribute("type", "artist")

	clone := m.Clone()

	clonedAgent, ok := clone.GetAgent(ns, "bobross")
	require.True(t, ok)

	clonedAgent.Attributes["type"] = NewStringAttribute("type", "mutated")

	original, ok := m.GetAgent(ns, "bobross")
	require.True(t, ok)
	assert.Equal(t, "artist", original.Attributes["type"].StringValue)
	assert.Equal(t, "mutated", clonedAgent.Attributes["type"].StringValue)
}

func TestMerge_FoldsRecordsWithoutDiscardingExisting(t *testing.T) {
	m := New()
	nsA := testNamespace(t)
	nsB := testNamespace(t)

	m.AddAgent(nsA, "existing")

	other := New()
	agent := other.AddAgent(nsB, "incoming")
	agent.Attributes["type"] = NewStringAttribute("type", "artist")
	other.AddAssociation(AssociationKey{Namespace: nsB, Agent: "incoming", Activity: "paint", Role: ""})

	m.Merge(other)

	_, ok := m.GetAgent(nsA, "existing")
	assert.True(t, ok, "merge must not discard unrelated namespaces")

	merged, ok := m.GetAgent(nsB, "incoming")
	require.True(t, ok)
	assert.Equal(t, "artist", merged.Attributes["type"].StringValue)
	assert.True(t, m.HasAssociation(AssociationKey{Namespace: nsB, Agent: "incoming", Activity: "paint", Role: ""}))
}

func TestGetAttribute_SearchesAcrossSubjectKinds(t *testing.T) {
	m := New()
	ns := testNamespace(t)

	e := m.AddEntity(ns, "painting")
	e.Attributes["medium"] = NewStringAttribute("medium", "oil")

	attr, ok := m.GetAttribute(ns, "painting", "medium")
	require.True(t, ok)
	assert.Equal(t, "oil", attr.StringValue)

	_, ok = m.GetAttribute(ns, "painting", "missing")
	assert.False(t, ok)

	_, ok = m.GetAttribute(ns, "nosuchsubject", "medium")
	assert.False(t, ok)
}

func TestSetDerivation_GetDerivation(t *testing.T) {
	m := New()
	ns := testNamespace(t)

	k := DerivationKey{Namespace: ns, Generated: "e1", Used: "e0"}

	_, ok := m.GetDerivation(k)
	assert.False(t, ok)

	m.SetDerivation(k, DerivationRevision, nil)

	d, ok := m.GetDerivation(k)
	require.True(t, ok)
	assert.Equal(t, DerivationRevision, d.Kind)
}

func TestToExpandedJSON_FromExpandedJSON_RoundTrip(t *testing.T) {
	m := New()
	ns := testNamespace(t)
	m.AddNamespace(ns)

	role := "curator"
	activity := "paint"

	agent := m.AddAgent(ns, "bobross")
	agent.Attributes["type"] = NewStringAttribute("type", "artist")

	act := m.AddActivity(ns, "paint")
	act.DomainType = strPtr("painting-session")

	entity := m.AddEntity(ns, "painting")
	entity.Evidence = &Evidence{Signature: "deadbeef", Locator: strPtr("s3://bucket/key")}

	m.AddAssociation(AssociationKey{Namespace: ns, Agent: "bobross", Activity: "paint", Role: role})
	m.AddAttribution(AttributionKey{Namespace: ns, Agent: "bobross", Entity: "painting", Role: role})
	m.AddDelegation(DelegationKey{Namespace: ns, Delegate: "d", Responsible: "r", Role: role, Activity: activity})
	m.AddUsage(UsageKey{Namespace: ns, Activity: "paint", Entity: "painting"})
	m.AddGeneration(GenerationKey{Namespace: ns, Activity: "paint", Entity: "painting"})
	m.AddInformedBy(InformedByKey{Namespace: ns, Activity: "paint", Informing: "sketch"})
	m.SetDerivation(DerivationKey{Namespace: ns, Generated: "painting", Used: "sketch"}, DerivationRevision, &activity)

	data, err := m.ToExpandedJSON(ns)
	require.NoError(t, err)

	out, outNS, err := FromExpandedJSON(data)
	require.NoError(t, err)
	assert.Equal(t, ns, outNS)

	roundTripped, err := out.ToExpandedJSON(outNS)
	require.NoError(t, err)

	assert.JSONEq(t, string(data), string(roundTripped))
}

func TestToExpandedJSON_DeterministicAcrossCallOrder(t *testing.T) {
	ns := testNamespace(t)

	build := func() *Model {
		m := New()
		m.AddNamespace(ns)
		m.AddAgent(ns, "z-agent")
		m.AddAgent(ns, "a-agent")
		m.AddAssociation(AssociationKey{Namespace: ns, Agent: "z-agent", Activity: "act", Role: ""})
		m.AddAssociation(AssociationKey{Namespace: ns, Agent: "a-agent", Activity: "act", Role: ""})

		return m
	}

	a, err := build().ToExpandedJSON(ns)
	require.NoError(t, err)

	b, err := build().ToExpandedJSON(ns)
	require.NoError(t, err)

	assert.Equal(t, string(a), string(b))
}

func TestCompactStableOrder_SortsObjectKeys(t *testing.T) {
	out, err := CompactStableOrder([]byte(`{"b":1,"a":2,"nested":{"z":1,"y":2}}`))
	require.NoError(t, err)

	assert.Equal(t, `{"a":2,"b":1,"nested":{"y":2,"z":1}}`, string(out))
}

func strPtr(s string) *string { return &s }
