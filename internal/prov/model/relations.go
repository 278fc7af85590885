package model

import (
	"time"

	"github.com/chronicleworks/chronicle/internal/prov/id"
)

// Relation keys are plain-string role/id tuples for hashability as map
// keys. This is a deliberate layering split from internal/prov/id, whose
// ID types use *string for qualifier rendering in IRI fragments — a
// missing role renders identically here and there ("" in both). The id
// package also parses an empty qualifier back as nil, so "present but
// empty" and "omitted" are not distinguished after a fragment round trip.

// AssociationKey identifies one (agent, activity, role) triple within a
// namespace — the same triple recorded twice is a no-op, not a
// contradiction (spec §3.2, invariant 7).
type AssociationKey struct {
	Namespace id.NamespaceID
	Agent     string
	Activity  string
	Role      string
}

type Association struct {
	Key      AssociationKey
	Recorded time.Time
}

// AttributionKey identifies one (agent, entity, role) triple.
type AttributionKey struct {
	Namespace id.NamespaceID
	Agent     string
	Entity    string
	Role      string
}

type Attribution struct {
	Key      AttributionKey
	Recorded time.Time
}

// DelegationKey identifies one (delegate, responsible, role, activity)
// quad — activity is optional (general delegation vs. activity-scoped).
type DelegationKey struct {
	Namespace   id.NamespaceID
	Delegate    string
	Responsible string
	Role        string
	Activity    string
}

type Delegation struct {
	Key      DelegationKey
	Recorded time.Time
}

// UsageKey identifies one (activity, entity) pair — an activity may use
// the same entity only once per the key (spec §3.2).
type UsageKey struct {
	Namespace id.NamespaceID
	Activity  string
	Entity    string
}

type Usage struct {
	Key      UsageKey
	Recorded time.Time
}

// GenerationKey identifies one (activity, entity) pair.
type GenerationKey struct {
	Namespace id.NamespaceID
	Activity  string
	Entity    string
}

type Generation struct {
	Key      GenerationKey
	Recorded time.Time
}

// InformedByKey identifies one (activity, informing-activity) pair.
type InformedByKey struct {
	Namespace id.NamespaceID
	Activity  string
	Informing string
}

type WasInformedBy struct {
	Key      InformedByKey
	Recorded time.Time
}

// DerivationKey identifies one (generated, used) entity pair. Kind is
// deliberately excluded from the key: recording the same pair again with
// a different DerivationKind is the contradiction case, not a new key
// (spec §3.2, §4.4 "same key, different value").
type DerivationKey struct {
	Namespace id.NamespaceID
	Generated string
	Used      string
}

type Derivation struct {
	Key      DerivationKey
	Kind     DerivationKind
	Activity *string
	Recorded time.Time
}

// AddAssociation is an idempotent upsert: recording the identical triple
// twice leaves Recorded at its first value.
func (m *Model) AddAssociation(k AssociationKey) Association {
	if existing, ok := m.Associations[k]; ok {
		return existing
	}

	rel := Association{Key: k, Recorded: clock()}
	m.Associations[k] = rel

	return rel
}

func (m *Model) HasAssociation(k AssociationKey) bool {
	_, ok := m.Associations[k]
	return ok
}

func (m *Model) AddAttribution(k AttributionKey) Attribution {
	if existing, ok := m.Attributions[k]; ok {
		return existing
	}

	rel := Attribution{Key: k, Recorded: clock()}
	m.Attributions[k] = rel

	return rel
}

func (m *Model) HasAttribution(k AttributionKey) bool {
	_, ok := m.Attributions[k]
	return ok
}

func (m *Model) AddDelegation(k DelegationKey) Delegation {
	if existing, ok := m.Delegations[k]; ok {
		return existing
	}

	rel := Delegation{Key: k, Recorded: clock()}
	m.Delegations[k] = rel

	return rel
}

func (m *Model) HasDelegation(k DelegationKey) bool {
	_, ok := m.Delegations[k]
	return ok
}

func (m *Model) AddUsage(k UsageKey) Usage {
	if existing, ok := m.Usages[k]; ok {
		return existing
	}

	rel := Usage{Key: k, Recorded: clock()}
	m.Usages[k] = rel

	return rel
}

func (m *Model) HasUsage(k UsageKey) bool {
	_, ok := m.Usages[k]
	return ok
}

func (m *Model) AddGeneration(k GenerationKey) Generation {
	if existing, ok := m.Generations[k]; ok {
		return existing
	}

	rel := Generation{Key: k, Recorded: clock()}
	m.Generations[k] = rel

	return rel
}

func (m *Model) HasGeneration(k GenerationKey) bool {
	_, ok := m.Generations[k]
	return ok
}

func (m *Model) AddInformedBy(k InformedByKey) WasInformedBy {
	if existing, ok := m.InformedBys[k]; ok {
		return existing
	}

	rel := WasInformedBy{Key: k, Recorded: clock()}
	m.InformedBys[k] = rel

	return rel
}

func (m *Model) HasInformedBy(k InformedByKey) bool {
	_, ok := m.InformedBys[k]
	return ok
}

// GetDerivation reports the recorded derivation kind for (generated,
// used), if any — the Apply Engine compares this against an incoming
// derivation to decide no-op vs. contradiction.
func (m *Model) GetDerivation(k DerivationKey) (Derivation, bool) {
	d, ok := m.Derivations[k]
	return d, ok
}

// SetDerivation unconditionally records a derivation; callers are
// expected to have already resolved no-op/contradiction via
// GetDerivation before calling this.
func (m *Model) SetDerivation(k DerivationKey, kind DerivationKind, activity *string) Derivation {
	rel := Derivation{Key: k, Kind: kind, Activity: activity, Recorded: clock()}
	m.Derivations[k] = rel

	return rel
}

// AssociationsForActivity, UsagesForActivity and GenerationsForActivity
// return one activity's relations by a linear scan of the relation map;
// the model keeps no secondary index.
func (m *Model) AssociationsForActivity(ns id.NamespaceID, activity string) []Association {
	var out []Association

	for k, v := range m.Associations {
		if k.Namespace == ns && k.Activity == activity {
			out = append(out, v)
		}
	}

	return out
}

func (m *Model) UsagesForActivity(ns id.NamespaceID, activity string) []Usage {
	var out []Usage

	for k, v := range m.Usages {
		if k.Namespace == ns && k.Activity == activity {
			out = append(out, v)
		}
	}

	return out
}

func (m *Model) GenerationsForActivity(ns id.NamespaceID, activity string) []Generation {
	var out []Generation

	for k, v := range m.Generations {
		if k.Namespace == ns && k.Activity == activity {
			out = append(out, v)
		}
	}

	return out
}
