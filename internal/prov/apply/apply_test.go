package apply

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicleworks/chronicle/internal/prov/id"
	"github.com/chronicleworks/chronicle/internal/prov/model"
	"github.com/chronicleworks/chronicle/internal/prov/op"
	"github.com/chronicleworks/chronicle/pkg/chronerr"
)

func testNamespace() id.NamespaceID {
	return id.NamespaceID{ExternalID: "default", UUID: uuid.New()}
}

func TestApply_ImpliedCreateNamespace(t *testing.T) {
	ns := testNamespace()
	m := model.New()

	res, err := Apply(m, []op.Operation{op.AgentExists{NS: ns, ExternalID: "bobross"}})
	require.NoError(t, err)

	assert.True(t, res.Model.HasNamespace(ns))
	_, ok := res.Model.GetAgent(ns, "bobross")
	assert.True(t, ok)

	assert.False(t, m.HasNamespace(ns), "input model must not be mutated")
}

func TestApply_ImpliedAgentsForActsOnBehalfOf(t *testing.T) {
	ns := testNamespace()
	m := model.New()

	res, err := Apply(m, []op.Operation{
		op.ActsOnBehalfOf{NS: ns, DelegateID: "d", ResponsibleID: "r"},
	})
	require.NoError(t, err)

	_, ok := res.Model.GetAgent(ns, "d")
	assert.True(t, ok)
	_, ok = res.Model.GetAgent(ns, "r")
	assert.True(t, ok)
	assert.True(t, res.Model.HasDelegation(model.DelegationKey{Namespace: ns, Delegate: "d", Responsible: "r"}))
}

func TestApply_ImpliedOperationsDedupedWhenSameAgentTwice(t *testing.T) {
	ns := testNamespace()
	m := model.New()

	res, err := Apply(m, []op.Operation{
		op.ActsOnBehalfOf{NS: ns, DelegateID: "same", ResponsibleID: "same"},
	})
	require.NoError(t, err)

	assert.Len(t, res.Model.Agents, 1)
}

func TestApply_ImpliedOperationsSkipExistingRecords(t *testing.T) {
	ns := testNamespace()
	m := model.New()
	m.AddNamespace(ns)
	m.AddAgent(ns, "bobross")

	res, err := Apply(m, []op.Operation{
		op.WasAssociatedWith{NS: ns, AgentID: "bobross", ActivityID: "paint"},
	})
	require.NoError(t, err)

	for _, o := range res.Delta {
		assert.NotEqual(t, op.KindAgentExists, o.Kind(), "implied AgentExists must not re-record an existing agent")
	}
}

func TestApply_Idempotent_NoDeltaOnRepeat(t *testing.T) {
	ns := testNamespace()
	m := model.New()

	ops := []op.Operation{
		op.WasAssociatedWith{NS: ns, AgentID: "bobross", ActivityID: "paint"},
	}

	first, err := Apply(m, ops)
	require.NoError(t, err)
	require.NotEmpty(t, first.Delta)

	second, err := Apply(first.Model, ops)
	require.NoError(t, err)
	assert.Empty(t, second.Delta)
}

func TestApply_StartActivity_SameTimeIsNoOp(t *testing.T) {
	ns := testNamespace()
	m := model.New()
	when := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first, err := Apply(m, []op.Operation{op.StartActivity{NS: ns, ActivityID: "paint", Time: when}})
	require.NoError(t, err)

	second, err := Apply(first.Model, []op.Operation{op.StartActivity{NS: ns, ActivityID: "paint", Time: when}})
	require.NoError(t, err)
	assert.Empty(t, second.Delta)
}

func TestApply_StartActivity_DifferentTimeIsContradiction(t *testing.T) {
	ns := testNamespace()
	m := model.New()
	when := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first, err := Apply(m, []op.Operation{op.StartActivity{NS: ns, ActivityID: "paint", Time: when}})
	require.NoError(t, err)

	_, err = Apply(first.Model, []op.Operation{
		op.StartActivity{NS: ns, ActivityID: "paint", Time: when.Add(time.Hour)},
	})
	require.Error(t, err)

	var c chronerr.Contradiction
	require.ErrorAs(t, err, &c)
	assert.Equal(t, ns.String(), c.Namespace)
}

func TestApply_Atomic_ModelUnchangedOnContradiction(t *testing.T) {
	ns := testNamespace()
	when := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	base, err := Apply(model.New(), []op.Operation{op.StartActivity{NS: ns, ActivityID: "paint", Time: when}})
	require.NoError(t, err)

	_, err = Apply(base.Model, []op.Operation{
		op.EndActivity{NS: ns, ActivityID: "paint", Time: when.Add(time.Hour)},
		op.StartActivity{NS: ns, ActivityID: "paint", Time: when.Add(-time.Hour)},
	})
	require.Error(t, err)

	act, ok := base.Model.GetActivity(ns, "paint")
	require.True(t, ok)
	assert.Nil(t, act.Ended, "an earlier operation in the same batch must not survive the later contradiction")
}

func TestApply_EntityDerive_SameKindIsNoOp(t *testing.T) {
	ns := testNamespace()
	m := model.New()

	ops := []op.Operation{
		op.EntityDerive{NS: ns, EntityID: "e1", UsedID: "e0", DerivationKind: model.DerivationRevision},
	}

	first, err := Apply(m, ops)
	require.NoError(t, err)

	second, err := Apply(first.Model, ops)
	require.NoError(t, err)
	assert.Empty(t, second.Delta)
}

func TestApply_EntityDerive_DifferentKindIsContradiction(t *testing.T) {
	ns := testNamespace()
	m := model.New()

	first, err := Apply(m, []op.Operation{
		op.EntityDerive{NS: ns, EntityID: "e1", UsedID: "e0", DerivationKind: model.DerivationRevision},
	})
	require.NoError(t, err)

	_, err = Apply(first.Model, []op.Operation{
		op.EntityDerive{NS: ns, EntityID: "e1", UsedID: "e0", DerivationKind: model.DerivationQuotation},
	})
	require.Error(t, err)

	var c chronerr.Contradiction
	assert.ErrorAs(t, err, &c)
}

func TestApply_SetAttributes_DomainTypeContradiction(t *testing.T) {
	ns := testNamespace()
	m := model.New()

	t1 := "artist"
	first, err := Apply(m, []op.Operation{
		op.SetAttributes{NS: ns, Subject: op.SubjectAgent, ExternalID: "bobross", DomainType: &t1},
	})
	require.NoError(t, err)

	t2 := "curator"
	_, err = Apply(first.Model, []op.Operation{
		op.SetAttributes{NS: ns, Subject: op.SubjectAgent, ExternalID: "bobross", DomainType: &t2},
	})
	require.Error(t, err)

	var c chronerr.Contradiction
	assert.ErrorAs(t, err, &c)
}

func TestApply_SetAttributes_AttributeTypeContradiction(t *testing.T) {
	ns := testNamespace()
	m := model.New()

	first, err := Apply(m, []op.Operation{
		op.SetAttributes{
			NS: ns, Subject: op.SubjectEntity, ExternalID: "painting",
			Attributes: []model.Attribute{model.NewStringAttribute("weight", "10")},
		},
	})
	require.NoError(t, err)

	_, err = Apply(first.Model, []op.Operation{
		op.SetAttributes{
			NS: ns, Subject: op.SubjectEntity, ExternalID: "painting",
			Attributes: []model.Attribute{model.NewIntAttribute("weight", 10)},
		},
	})
	require.Error(t, err)

	var c chronerr.Contradiction
	assert.ErrorAs(t, err, &c)
}

func TestApply_SetAttributes_SameValueIsNoOp_DifferentValueUpdates(t *testing.T) {
	ns := testNamespace()
	m := model.New()

	ops := []op.Operation{
		op.SetAttributes{
			NS: ns, Subject: op.SubjectEntity, ExternalID: "painting",
			Attributes: []model.Attribute{model.NewStringAttribute("medium", "oil")},
		},
	}

	first, err := Apply(m, ops)
	require.NoError(t, err)

	second, err := Apply(first.Model, ops)
	require.NoError(t, err)
	assert.Empty(t, second.Delta, "recording the identical value again must not produce a delta")

	third, err := Apply(second.Model, []op.Operation{
		op.SetAttributes{
			NS: ns, Subject: op.SubjectEntity, ExternalID: "painting",
			Attributes: []model.Attribute{model.NewStringAttribute("medium", "acrylic")},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, third.Delta, "a changed value must be recorded")

	attr, ok := third.Model.GetAttribute(ns, "painting", "medium")
	require.True(t, ok)
	assert.Equal(t, "acrylic", attr.StringValue)
}

func TestApply_SetAttributes_JSONAttributeRoundTrips(t *testing.T) {
	ns := testNamespace()
	m := model.New()

	res, err := Apply(m, []op.Operation{
		op.SetAttributes{
			NS: ns, Subject: op.SubjectEntity, ExternalID: "painting",
			Attributes: []model.Attribute{model.NewJSONAttribute("meta", json.RawMessage(`{"a":1}`))},
		},
	})
	require.NoError(t, err)

	attr, ok := res.Model.GetAttribute(ns, "painting", "meta")
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(attr.JSONValue))
}

func TestApply_RegisterKey_SameKeyIsNoOp_NewKeyAppendsHistory(t *testing.T) {
	ns := testNamespace()
	m := model.New()

	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	restore := stubClock(fixed)
	defer restore()

	ops := []op.Operation{op.RegisterKey{NS: ns, AgentID: "bobross", PublicKey: "k1"}}

	first, err := Apply(m, ops)
	require.NoError(t, err)

	second, err := Apply(first.Model, ops)
	require.NoError(t, err)
	assert.Empty(t, second.Delta)

	third, err := Apply(second.Model, []op.Operation{
		op.RegisterKey{NS: ns, AgentID: "bobross", PublicKey: "k2"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, third.Delta)

	a, ok := third.Model.GetAgent(ns, "bobross")
	require.True(t, ok)
	assert.Equal(t, "k2", a.CurrentIdentity.PublicKey)
	assert.Len(t, a.IdentityHistory, 2)
}

func TestApply_WasInformedBy_Idempotent(t *testing.T) {
	ns := testNamespace()
	m := model.New()

	ops := []op.Operation{op.WasInformedBy{NS: ns, ActivityID: "paint", InformingActivity: "sketch"}}

	first, err := Apply(m, ops)
	require.NoError(t, err)
	assert.True(t, first.Model.HasInformedBy(model.InformedByKey{Namespace: ns, Activity: "paint", Informing: "sketch"}))

	second, err := Apply(first.Model, ops)
	require.NoError(t, err)
	assert.Empty(t, second.Delta)
}

func TestApply_UnknownOperationKindErrors(t *testing.T) {
	_, err := Apply(model.New(), []op.Operation{unknownOp{}})
	require.Error(t, err)
}

type unknownOp struct{}

func (unknownOp) Kind() op.Kind            { return op.Kind("Bogus") }
func (unknownOp) Namespace() id.NamespaceID { return id.NamespaceID{ExternalID: "x", UUID: uuid.New()} }

func stubClock(t time.Time) func() {
	prev := clockNow
	clockNow = func() time.Time { return t }

	return func() { clockNow = prev }
}
