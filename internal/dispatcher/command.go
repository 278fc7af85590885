// Package dispatcher implements the API Dispatcher (spec §4.7): it
// accepts high-level commands addressed at a namespace, translates them
// into operation batches, authorizes, dry-runs, composes and signs a
// transaction, and submits it to the ledger.
package dispatcher

import (
	"time"

	"github.com/chronicleworks/chronicle/internal/prov/model"
	"github.com/chronicleworks/chronicle/internal/prov/op"
)

// Command is implemented by every dispatchable command. Shape identifies
// the command to the policy engine (spec §4.7 step 2: "command-shape").
type Command interface {
	Shape() string
}

// AgentCreate records a bare agent plus optional domain type/attributes.
type AgentCreate struct {
	Namespace  string
	Name       string
	DomainType *string
	Attributes []model.Attribute
}

func (AgentCreate) Shape() string { return "Agent.Create" }

type ActivityCreate struct {
	Namespace  string
	Name       string
	DomainType *string
	Attributes []model.Attribute
}

func (ActivityCreate) Shape() string { return "Activity.Create" }

type EntityCreate struct {
	Namespace  string
	Name       string
	DomainType *string
	Attributes []model.Attribute
}

func (EntityCreate) Shape() string { return "Entity.Create" }

type ActivityStart struct {
	Namespace string
	Activity  string
	Time      time.Time
}

func (ActivityStart) Shape() string { return "Activity.Start" }

type ActivityEnd struct {
	Namespace string
	Activity  string
	Time      time.Time
}

func (ActivityEnd) Shape() string { return "Activity.End" }

// ActivityUse records that Activity used Entity.
type ActivityUse struct {
	Namespace string
	Activity  string
	Entity    string
}

func (ActivityUse) Shape() string { return "Activity.Use" }

// ActivityGenerate records that Activity generated Entity.
type ActivityGenerate struct {
	Namespace string
	Activity  string
	Entity    string
}

func (ActivityGenerate) Shape() string { return "Activity.Generate" }

type ActivityWasInformedBy struct {
	Namespace string
	Activity  string
	Informing string
}

func (ActivityWasInformedBy) Shape() string { return "Activity.WasInformedBy" }

type AgentAssociate struct {
	Namespace string
	Agent     string
	Activity  string
	Role      *string
}

func (AgentAssociate) Shape() string { return "Agent.Associate" }

type AgentAttribute struct {
	Namespace string
	Agent     string
	Entity    string
	Role      *string
}

func (AgentAttribute) Shape() string { return "Agent.Attribute" }

// AgentDelegate records that Delegate acts on behalf of Responsible,
// optionally scoped to one activity and role (spec S3).
type AgentDelegate struct {
	Namespace   string
	Delegate    string
	Responsible string
	Activity    *string
	Role        *string
}

func (AgentDelegate) Shape() string { return "Agent.Delegate" }

type AgentRegisterKey struct {
	Namespace string
	Agent     string
	PublicKey string
}

func (AgentRegisterKey) Shape() string { return "Agent.RegisterKey" }

// EntityDerive records that Generated was derived from Used.
type EntityDerive struct {
	Namespace string
	Generated string
	Used      string
	Activity  *string
	Kind      model.DerivationKind
}

func (EntityDerive) Shape() string { return "Entity.Derive" }

// Query reads the current provenance model for a namespace (spec §6.4
// "query(namespace) -> ProvModel").
type Query struct {
	Namespace string
}

func (Query) Shape() string { return "Query" }

// DepthCharge submits a no-op transaction used as a liveness probe
// (spec §4.7, SPEC_FULL §12 item 1).
type DepthCharge struct{}

func (DepthCharge) Shape() string { return "DepthCharge" }

// Import accepts a pre-built operation batch and submits it as a single
// transaction (SPEC_FULL §12 item 2), bypassing per-command translation.
type Import struct {
	Namespace string
	Ops       []op.Operation
}

func (Import) Shape() string { return "Import" }
