package op

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/chronicleworks/chronicle/internal/prov/id"
	"github.com/chronicleworks/chronicle/internal/prov/model"
)

func testNamespace() id.NamespaceID {
	return id.NamespaceID{ExternalID: "default", UUID: uuid.New()}
}

func TestOperations_KindAndNamespace(t *testing.T) {
	ns := testNamespace()
	role := "curator"
	activity := "paint"

	cases := []struct {
		op   Operation
		kind Kind
	}{
		{CreateNamespace{NS: ns}, KindCreateNamespace},
		{AgentExists{NS: ns, ExternalID: "bobross"}, KindAgentExists},
		{ActsOnBehalfOf{NS: ns, DelegateID: "d", ResponsibleID: "r", ActivityID: &activity, Role: &role}, KindActsOnBehalfOf},
		{RegisterKey{NS: ns, AgentID: "bobross", PublicKey: "deadbeef"}, KindRegisterKey},
		{ActivityExists{NS: ns, ExternalID: "paint"}, KindActivityExists},
		{StartActivity{NS: ns, ActivityID: "paint", Time: time.Now()}, KindStartActivity},
		{EndActivity{NS: ns, ActivityID: "paint", Time: time.Now()}, KindEndActivity},
		{ActivityUses{NS: ns, EntityID: "painting", ActivityID: "paint"}, KindActivityUses},
		{EntityExists{NS: ns, ExternalID: "painting"}, KindEntityExists},
		{WasGeneratedBy{NS: ns, EntityID: "painting", ActivityID: "paint"}, KindWasGeneratedBy},
		{EntityDerive{NS: ns, EntityID: "painting", UsedID: "sketch", ActivityID: &activity, DerivationKind: model.DerivationRevision}, KindEntityDerive},
		{SetAttributes{NS: ns, Subject: SubjectAgent, ExternalID: "bobross"}, KindSetAttributes},
		{WasAssociatedWith{NS: ns, AgentID: "bobross", ActivityID: "paint", Role: &role}, KindWasAssociatedWith},
		{WasAttributedTo{NS: ns, AgentID: "bobross", EntityID: "painting", Role: &role}, KindWasAttributedTo},
		{WasInformedBy{NS: ns, ActivityID: "paint", InformingActivity: "sketch"}, KindWasInformedBy},
	}

	for _, c := range cases {
		t.Run(string(c.kind), func(t *testing.T) {
			assert.Equal(t, c.kind, c.op.Kind())
			assert.Equal(t, ns, c.op.Namespace())
		})
	}
}

func TestOperations_KindsAreDistinct(t *testing.T) {
	kinds := []Kind{
		KindCreateNamespace, KindAgentExists, KindActsOnBehalfOf, KindRegisterKey,
		KindActivityExists, KindStartActivity, KindEndActivity, KindActivityUses,
		KindEntityExists, KindWasGeneratedBy, KindEntityDerive, KindSetAttributes,
		KindWasAssociatedWith, KindWasAttributedTo, KindWasInformedBy,
	}

	seen := map[Kind]bool{}
	for _, k := range kinds {
		assert.False(t, seen[k], "duplicate kind %s", k)
		seen[k] = true
	}

	assert.Len(t, seen, 15)
}

func TestAttributeSubject_Values(t *testing.T) {
	assert.Equal(t, AttributeSubject("Agent"), SubjectAgent)
	assert.Equal(t, AttributeSubject("Activity"), SubjectActivity)
	assert.Equal(t, AttributeSubject("Entity"), SubjectEntity)
}

func TestSetAttributes_OptionalFieldsDefaultNil(t *testing.T) {
	ns := testNamespace()

	s := SetAttributes{NS: ns, Subject: SubjectEntity, ExternalID: "painting"}

	assert.Nil(t, s.DomainType)
	assert.Nil(t, s.Attributes)
}
