// Package id composes and parses the stable IRIs used to address every
// PROV record kind (spec §3.1, §4.1). Construction is infallible over
// arbitrary external-id strings because every occurrence is
// percent-encoded against a non-alphanumeric reservation set; parsing can
// fail on malformed input.
package id

import (
	"fmt"

	"github.com/google/uuid"
)

// LongPrefix is the canonical IRI base. CompactPrefix is substituted for
// it in the compact rendering (spec §3.1: "A compacted form substitutes
// the long prefix with the short prefix `chronicle:`").
const (
	LongPrefix    = "https://ns.chronicle.works/prov#"
	CompactPrefix = "chronicle:"
)

// Kind names the first fragment component of every IRI; the parser
// dispatches on it (spec §4.1).
type Kind string

const (
	KindNamespace   Kind = "ns"
	KindAgent       Kind = "agent"
	KindActivity    Kind = "activity"
	KindEntity      Kind = "entity"
	KindDomainType  Kind = "domaintype"
	KindEvidence    Kind = "evidence"
	KindIdentity    Kind = "identity"
	KindAssociation Kind = "association"
	KindAttribution Kind = "attribution"
	KindDelegation  Kind = "delegation"
)

// ID is implemented by every IRI value type below. Fragment renders the
// part after LongPrefix/CompactPrefix, with no percent-decoding applied.
type ID interface {
	Kind() Kind
	Fragment() string
}

// Format renders the full long-form IRI for id.
func Format(i ID) string {
	return LongPrefix + i.Fragment()
}

// Compact renders the short-form IRI, substituting CompactPrefix for
// LongPrefix.
func Compact(i ID) string {
	return CompactPrefix + i.Fragment()
}

// Expand rewrites a compact IRI back to its long form. Strings that are
// already in long form, or that aren't chronicle IRIs at all, pass
// through unchanged.
func Expand(s string) string {
	if len(s) >= len(CompactPrefix) && s[:len(CompactPrefix)] == CompactPrefix {
		return LongPrefix + s[len(CompactPrefix):]
	}

	return s
}

// NamespaceID addresses a Namespace: (external_id, uuid).
type NamespaceID struct {
	ExternalID string
	UUID       uuid.UUID
}

func (n NamespaceID) Kind() Kind { return KindNamespace }

// String renders a debug-friendly, non-IRI form used in log lines and
// contradiction messages.
func (n NamespaceID) String() string {
	return fmt.Sprintf("%s/%s", n.ExternalID, n.UUID)
}

func (n NamespaceID) Fragment() string {
	return fmt.Sprintf("%s:%s:%s", KindNamespace, percentEncode(n.ExternalID), n.UUID.String())
}

// AgentID, ActivityID, EntityID, DomainTypeID are "simple" ids: a kind
// prefix plus one percent-encoded external-id component.
type AgentID struct{ ExternalID string }

func (a AgentID) Kind() Kind        { return KindAgent }
func (a AgentID) Fragment() string  { return simpleFragment(KindAgent, a.ExternalID) }

type ActivityID struct{ ExternalID string }

func (a ActivityID) Kind() Kind       { return KindActivity }
func (a ActivityID) Fragment() string { return simpleFragment(KindActivity, a.ExternalID) }

type EntityID struct{ ExternalID string }

func (e EntityID) Kind() Kind        { return KindEntity }
func (e EntityID) Fragment() string  { return simpleFragment(KindEntity, e.ExternalID) }

type DomainTypeID struct{ ExternalID string }

func (d DomainTypeID) Kind() Kind       { return KindDomainType }
func (d DomainTypeID) Fragment() string { return simpleFragment(KindDomainType, d.ExternalID) }

func simpleFragment(k Kind, externalID string) string {
	return fmt.Sprintf("%s:%s", k, percentEncode(externalID))
}

// EvidenceID qualifies an entity's external-id with the evidence
// signature.
type EvidenceID struct {
	EntityExternalID string
	Signature        string
}

func (e EvidenceID) Kind() Kind { return KindEvidence }

func (e EvidenceID) Fragment() string {
	return fmt.Sprintf("%s:%s:%s", KindEvidence, percentEncode(e.EntityExternalID), percentEncode(e.Signature))
}

// IdentityID qualifies an agent's external-id with its public key.
type IdentityID struct {
	AgentExternalID string
	PublicKey       string
}

func (i IdentityID) Kind() Kind { return KindIdentity }

func (i IdentityID) Fragment() string {
	return fmt.Sprintf("%s:%s:%s", KindIdentity, percentEncode(i.AgentExternalID), percentEncode(i.PublicKey))
}

// AssociationID keys an (agent, activity, role?) triple. Role is
// rendered as "role=<value>" with an empty value when absent — it always
// participates in the key (spec §3.1).
type AssociationID struct {
	AgentExternalID    string
	ActivityExternalID string
	Role               *string
}

func (a AssociationID) Kind() Kind { return KindAssociation }

func (a AssociationID) Fragment() string {
	return fmt.Sprintf("%s:%s:%s:role=%s", KindAssociation,
		percentEncode(a.AgentExternalID), percentEncode(a.ActivityExternalID), percentEncode(deref(a.Role)))
}

// AttributionID keys an (agent, entity, role?) triple.
type AttributionID struct {
	AgentExternalID  string
	EntityExternalID string
	Role             *string
}

func (a AttributionID) Kind() Kind { return KindAttribution }

func (a AttributionID) Fragment() string {
	return fmt.Sprintf("%s:%s:%s:role=%s", KindAttribution,
		percentEncode(a.AgentExternalID), percentEncode(a.EntityExternalID), percentEncode(deref(a.Role)))
}

// DelegationID keys a (delegate, responsible, activity?, role?) quad.
type DelegationID struct {
	DelegateExternalID    string
	ResponsibleExternalID string
	Role                  *string
	ActivityExternalID    *string
}

func (d DelegationID) Kind() Kind { return KindDelegation }

func (d DelegationID) Fragment() string {
	return fmt.Sprintf("%s:%s:%s:role=%s:activity=%s", KindDelegation,
		percentEncode(d.DelegateExternalID), percentEncode(d.ResponsibleExternalID),
		percentEncode(deref(d.Role)), percentEncode(deref(d.ActivityExternalID)))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
