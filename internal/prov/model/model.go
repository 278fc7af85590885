// Package model holds the in-memory provenance graph (spec §3.2, §4.2):
// namespaces, agents, activities, entities and their typed relations.
// Model is a plain value-oriented data structure with no I/O. The Apply
// Engine (internal/prov/apply) applies operations to it; Merge (used by
// the dispatcher's mirror) and FromExpandedJSON also build or modify
// models.
package model

import (
	"time"

	"github.com/chronicleworks/chronicle/internal/prov/id"
)

// SubjectKey addresses an agent, activity, or entity within a namespace.
type SubjectKey struct {
	Namespace  id.NamespaceID
	ExternalID string
}

// DerivationKind enumerates the PROV derivation qualifiers (spec §3.2).
type DerivationKind string

const (
	DerivationNone         DerivationKind = "None"
	DerivationRevision     DerivationKind = "Revision"
	DerivationQuotation    DerivationKind = "Quotation"
	DerivationPrimarySource DerivationKind = "PrimarySource"
)

// Namespace is (external_id, uuid) — the uuid is submitter-provided and
// must be stable; a different uuid for the same external_id is a
// distinct namespace (spec §3.2 invariant 6). The identity itself is
// id.NamespaceID, used as the Model.Namespaces map key; Namespace is the
// stored record value.
type Namespace struct {
	ID id.NamespaceID
}

// IdentityRef points an agent at one of its registered identities.
type IdentityRef struct {
	AgentExternalID string
	PublicKey       string
}

// Identity records a public key an agent has registered. Prior identities
// remain in Agent.IdentityHistory but are not Agent.CurrentIdentity
// (spec §3.3).
type Identity struct {
	AgentExternalID string
	PublicKey       string
	RegisteredAt    time.Time
}

// Evidence supersedes prior evidence on the same entity, last-writer-wins
// (spec §3.3). Signature/SignatureTime/Locator are kept as three distinct
// fields — the corrected form of the source's signature_time bug
// (spec §9, SPEC_FULL §12 item 5).
type Evidence struct {
	Signature     string
	SignatureTime time.Time
	SignerRef     string
	Locator       *string
}

// Agent, Activity and Entity share the same attribute/domain-type shape.
type Agent struct {
	ExternalID      string
	Namespace       id.NamespaceID
	Attributes      map[string]Attribute
	DomainType      *string
	CurrentIdentity *IdentityRef
	IdentityHistory []Identity
}

type Activity struct {
	ExternalID string
	Namespace  id.NamespaceID
	Attributes map[string]Attribute
	DomainType *string
	Started    *time.Time
	Ended      *time.Time
}

type Entity struct {
	ExternalID string
	Namespace  id.NamespaceID
	Attributes map[string]Attribute
	DomainType *string
	Evidence   *Evidence
}

func newAgent(ns id.NamespaceID, externalID string) *Agent {
	return &Agent{ExternalID: externalID, Namespace: ns, Attributes: map[string]Attribute{}}
}

func newActivity(ns id.NamespaceID, externalID string) *Activity {
	return &Activity{ExternalID: externalID, Namespace: ns, Attributes: map[string]Attribute{}}
}

func newEntity(ns id.NamespaceID, externalID string) *Entity {
	return &Entity{ExternalID: externalID, Namespace: ns, Attributes: map[string]Attribute{}}
}

// Model is the full in-memory provenance graph for every namespace known
// to this process (or this dry-run snapshot).
type Model struct {
	Namespaces map[id.NamespaceID]Namespace
	Agents     map[SubjectKey]*Agent
	Activities map[SubjectKey]*Activity
	Entities   map[SubjectKey]*Entity

	Associations  map[AssociationKey]Association
	Attributions  map[AttributionKey]Attribution
	Delegations   map[DelegationKey]Delegation
	Usages        map[UsageKey]Usage
	Generations   map[GenerationKey]Generation
	InformedBys   map[InformedByKey]WasInformedBy
	Derivations   map[DerivationKey]Derivation
}

// New returns an empty model.
func New() *Model {
	return &Model{
		Namespaces:   map[id.NamespaceID]Namespace{},
		Agents:       map[SubjectKey]*Agent{},
		Activities:   map[SubjectKey]*Activity{},
		Entities:     map[SubjectKey]*Entity{},
		Associations: map[AssociationKey]Association{},
		Attributions: map[AttributionKey]Attribution{},
		Delegations:  map[DelegationKey]Delegation{},
		Usages:       map[UsageKey]Usage{},
		Generations:  map[GenerationKey]Generation{},
		InformedBys:  map[InformedByKey]WasInformedBy{},
		Derivations:  map[DerivationKey]Derivation{},
	}
}

// Clone deep-copies the model so the Apply Engine can dry-run against a
// snapshot without mutating the caller's state (spec §4.4 step "either
// all succeed or none applied").
func (m *Model) Clone() *Model {
	out := New()

	for k, v := range m.Namespaces {
		out.Namespaces[k] = v
	}

	for k, v := range m.Agents {
		cp := *v
		cp.Attributes = cloneAttrs(v.Attributes)
		cp.IdentityHistory = append([]Identity(nil), v.IdentityHistory...)
		out.Agents[k] = &cp
	}

	for k, v := range m.Activities {
		cp := *v
		cp.Attributes = cloneAttrs(v.Attributes)
		out.Activities[k] = &cp
	}

	for k, v := range m.Entities {
		cp := *v
		cp.Attributes = cloneAttrs(v.Attributes)
		out.Entities[k] = &cp
	}

	for k, v := range m.Associations {
		out.Associations[k] = v
	}

	for k, v := range m.Attributions {
		out.Attributions[k] = v
	}

	for k, v := range m.Delegations {
		out.Delegations[k] = v
	}

	for k, v := range m.Usages {
		out.Usages[k] = v
	}

	for k, v := range m.Generations {
		out.Generations[k] = v
	}

	for k, v := range m.InformedBys {
		out.InformedBys[k] = v
	}

	for k, v := range m.Derivations {
		out.Derivations[k] = v
	}

	return out
}

// Merge folds other's records into m, idempotent-upsert per kind — used
// by the dispatcher's read mirror to absorb a committed delta without
// discarding unrelated namespaces already held in m.
func (m *Model) Merge(other *Model) {
	for k := range other.Namespaces {
		m.AddNamespace(k)
	}

	for k, v := range other.Agents {
		a := m.AddAgent(k.Namespace, k.ExternalID)
		a.DomainType = v.DomainType

		for name, attr := range v.Attributes {
			a.Attributes[name] = attr
		}

		if v.CurrentIdentity != nil {
			a.CurrentIdentity = v.CurrentIdentity
			a.IdentityHistory = append(a.IdentityHistory, v.IdentityHistory...)
		}
	}

	for k, v := range other.Activities {
		a := m.AddActivity(k.Namespace, k.ExternalID)
		a.DomainType = v.DomainType
		a.Started = v.Started
		a.Ended = v.Ended

		for name, attr := range v.Attributes {
			a.Attributes[name] = attr
		}
	}

	for k, v := range other.Entities {
		e := m.AddEntity(k.Namespace, k.ExternalID)
		e.DomainType = v.DomainType
		e.Evidence = v.Evidence

		for name, attr := range v.Attributes {
			e.Attributes[name] = attr
		}
	}

	for k := range other.Associations {
		m.AddAssociation(k)
	}

	for k := range other.Attributions {
		m.AddAttribution(k)
	}

	for k := range other.Delegations {
		m.AddDelegation(k)
	}

	for k := range other.Usages {
		m.AddUsage(k)
	}

	for k := range other.Generations {
		m.AddGeneration(k)
	}

	for k := range other.InformedBys {
		m.AddInformedBy(k)
	}

	for k, v := range other.Derivations {
		m.SetDerivation(k, v.Kind, v.Activity)
	}
}

func cloneAttrs(in map[string]Attribute) map[string]Attribute {
	out := make(map[string]Attribute, len(in))
	for k, v := range in {
		out[k] = v
	}

	return out
}

// HasNamespace, AddNamespace — idempotent upsert, keyed by the
// (external_id, uuid) pair (spec §4.3 CreateNamespace: "Insert namespace
// if absent").
func (m *Model) HasNamespace(ns id.NamespaceID) bool {
	_, ok := m.Namespaces[ns]
	return ok
}

func (m *Model) AddNamespace(ns id.NamespaceID) {
	if m.HasNamespace(ns) {
		return
	}

	m.Namespaces[ns] = Namespace{ID: ns}
}

// AddAgent inserts a bare agent if absent (idempotent upsert keyed by id).
func (m *Model) AddAgent(ns id.NamespaceID, externalID string) *Agent {
	key := SubjectKey{Namespace: ns, ExternalID: externalID}

	a, ok := m.Agents[key]
	if !ok {
		a = newAgent(ns, externalID)
		m.Agents[key] = a
	}

	return a
}

func (m *Model) GetAgent(ns id.NamespaceID, externalID string) (*Agent, bool) {
	a, ok := m.Agents[SubjectKey{Namespace: ns, ExternalID: externalID}]
	return a, ok
}

// AddActivity inserts a bare activity if absent.
func (m *Model) AddActivity(ns id.NamespaceID, externalID string) *Activity {
	key := SubjectKey{Namespace: ns, ExternalID: externalID}

	a, ok := m.Activities[key]
	if !ok {
		a = newActivity(ns, externalID)
		m.Activities[key] = a
	}

	return a
}

func (m *Model) GetActivity(ns id.NamespaceID, externalID string) (*Activity, bool) {
	a, ok := m.Activities[SubjectKey{Namespace: ns, ExternalID: externalID}]
	return a, ok
}

// AddEntity inserts a bare entity if absent.
func (m *Model) AddEntity(ns id.NamespaceID, externalID string) *Entity {
	key := SubjectKey{Namespace: ns, ExternalID: externalID}

	e, ok := m.Entities[key]
	if !ok {
		e = newEntity(ns, externalID)
		m.Entities[key] = e
	}

	return e
}

func (m *Model) GetEntity(ns id.NamespaceID, externalID string) (*Entity, bool) {
	e, ok := m.Entities[SubjectKey{Namespace: ns, ExternalID: externalID}]
	return e, ok
}

// GetAttribute looks up a previously recorded attribute for a subject, of
// whichever kind (agent/activity/entity) currently holds that external id
// in the namespace, searching agents, then activities, then entities.
// The Apply Engine reads attribute maps directly and does not call it.
func (m *Model) GetAttribute(ns id.NamespaceID, subjectExternalID, name string) (Attribute, bool) {
	key := SubjectKey{Namespace: ns, ExternalID: subjectExternalID}

	if a, ok := m.Agents[key]; ok {
		if attr, ok := a.Attributes[name]; ok {
			return attr, true
		}
	}

	if a, ok := m.Activities[key]; ok {
		if attr, ok := a.Attributes[name]; ok {
			return attr, true
		}
	}

	if e, ok := m.Entities[key]; ok {
		if attr, ok := e.Attributes[name]; ok {
			return attr, true
		}
	}

	return Attribute{}, false
}

// DomainType returns the currently recorded domain type for a subject, if
// any, regardless of subject kind.
func (m *Model) DomainType(ns id.NamespaceID, subjectExternalID string) (*string, bool) {
	key := SubjectKey{Namespace: ns, ExternalID: subjectExternalID}

	if a, ok := m.Agents[key]; ok {
		return a.DomainType, a.DomainType != nil
	}

	if a, ok := m.Activities[key]; ok {
		return a.DomainType, a.DomainType != nil
	}

	if e, ok := m.Entities[key]; ok {
		return e.DomainType, e.DomainType != nil
	}

	return nil, false
}
