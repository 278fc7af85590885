// Package op defines the closed set of provenance operations the Apply
// Engine folds over a Model (spec §3.3, §4.1). Operations are the unit of
// signing and ledger submission: a submitted transaction is an ordered
// slice of Operation values.
package op

import (
	"time"

	"github.com/chronicleworks/chronicle/internal/prov/id"
	"github.com/chronicleworks/chronicle/internal/prov/model"
)

// Kind tags each operation variant.
type Kind string

const (
	KindCreateNamespace    Kind = "CreateNamespace"
	KindAgentExists        Kind = "AgentExists"
	KindActsOnBehalfOf     Kind = "AgentActsOnBehalfOf"
	KindRegisterKey        Kind = "RegisterKey"
	KindActivityExists     Kind = "ActivityExists"
	KindStartActivity      Kind = "StartActivity"
	KindEndActivity        Kind = "EndActivity"
	KindActivityUses       Kind = "ActivityUses"
	KindEntityExists       Kind = "EntityExists"
	KindWasGeneratedBy     Kind = "WasGeneratedBy"
	KindEntityDerive       Kind = "EntityDerive"
	KindSetAttributes      Kind = "SetAttributes"
	KindWasAssociatedWith  Kind = "WasAssociatedWith"
	KindWasAttributedTo    Kind = "WasAttributedTo"
	KindWasInformedBy      Kind = "WasInformedBy"
)

// Operation is implemented by every operation variant. Namespace reports
// the namespace the operation applies within, used both for routing and
// for the implied CreateNamespace prerequisite (spec §4.1).
type Operation interface {
	Kind() Kind
	Namespace() id.NamespaceID
}

type CreateNamespace struct {
	NS id.NamespaceID
}

func (o CreateNamespace) Kind() Kind               { return KindCreateNamespace }
func (o CreateNamespace) Namespace() id.NamespaceID { return o.NS }

type AgentExists struct {
	NS         id.NamespaceID
	ExternalID string
}

func (o AgentExists) Kind() Kind               { return KindAgentExists }
func (o AgentExists) Namespace() id.NamespaceID { return o.NS }

type ActsOnBehalfOf struct {
	NS            id.NamespaceID
	DelegateID    string
	ResponsibleID string
	ActivityID    *string
	Role          *string
}

func (o ActsOnBehalfOf) Kind() Kind               { return KindActsOnBehalfOf }
func (o ActsOnBehalfOf) Namespace() id.NamespaceID { return o.NS }

type RegisterKey struct {
	NS        id.NamespaceID
	AgentID   string
	PublicKey string
}

func (o RegisterKey) Kind() Kind               { return KindRegisterKey }
func (o RegisterKey) Namespace() id.NamespaceID { return o.NS }

type ActivityExists struct {
	NS         id.NamespaceID
	ExternalID string
}

func (o ActivityExists) Kind() Kind               { return KindActivityExists }
func (o ActivityExists) Namespace() id.NamespaceID { return o.NS }

type StartActivity struct {
	NS         id.NamespaceID
	ActivityID string
	Time       time.Time
}

func (o StartActivity) Kind() Kind               { return KindStartActivity }
func (o StartActivity) Namespace() id.NamespaceID { return o.NS }

type EndActivity struct {
	NS         id.NamespaceID
	ActivityID string
	Time       time.Time
}

func (o EndActivity) Kind() Kind               { return KindEndActivity }
func (o EndActivity) Namespace() id.NamespaceID { return o.NS }

type ActivityUses struct {
	NS         id.NamespaceID
	EntityID   string
	ActivityID string
}

func (o ActivityUses) Kind() Kind               { return KindActivityUses }
func (o ActivityUses) Namespace() id.NamespaceID { return o.NS }

type EntityExists struct {
	NS         id.NamespaceID
	ExternalID string
}

func (o EntityExists) Kind() Kind               { return KindEntityExists }
func (o EntityExists) Namespace() id.NamespaceID { return o.NS }

type WasGeneratedBy struct {
	NS         id.NamespaceID
	EntityID   string
	ActivityID string
}

func (o WasGeneratedBy) Kind() Kind               { return KindWasGeneratedBy }
func (o WasGeneratedBy) Namespace() id.NamespaceID { return o.NS }

type EntityDerive struct {
	NS         id.NamespaceID
	EntityID   string
	UsedID     string
	ActivityID *string
	DerivationKind model.DerivationKind
}

func (o EntityDerive) Kind() Kind               { return KindEntityDerive }
func (o EntityDerive) Namespace() id.NamespaceID { return o.NS }

// AttributeSubject tags which record kind SetAttributes targets — the
// source models this as three enum variants; Go models it as one struct
// with a subject-kind tag (spec §3.3 SetAttributes).
type AttributeSubject string

const (
	SubjectAgent    AttributeSubject = "Agent"
	SubjectActivity AttributeSubject = "Activity"
	SubjectEntity   AttributeSubject = "Entity"
)

type SetAttributes struct {
	NS         id.NamespaceID
	Subject    AttributeSubject
	ExternalID string
	DomainType *string
	Attributes []model.Attribute
}

func (o SetAttributes) Kind() Kind               { return KindSetAttributes }
func (o SetAttributes) Namespace() id.NamespaceID { return o.NS }

type WasAssociatedWith struct {
	NS         id.NamespaceID
	AgentID    string
	ActivityID string
	Role       *string
}

func (o WasAssociatedWith) Kind() Kind               { return KindWasAssociatedWith }
func (o WasAssociatedWith) Namespace() id.NamespaceID { return o.NS }

type WasAttributedTo struct {
	NS       id.NamespaceID
	AgentID  string
	EntityID string
	Role     *string
}

func (o WasAttributedTo) Kind() Kind               { return KindWasAttributedTo }
func (o WasAttributedTo) Namespace() id.NamespaceID { return o.NS }

type WasInformedBy struct {
	NS                id.NamespaceID
	ActivityID        string
	InformingActivity string
}

func (o WasInformedBy) Kind() Kind               { return KindWasInformedBy }
func (o WasInformedBy) Namespace() id.NamespaceID { return o.NS }
