package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/chronicleworks/chronicle/internal/prov/id"
	"github.com/chronicleworks/chronicle/pkg/chronerr"
)

// ExpandedDocument is the deterministic, fully-expanded JSON rendering of
// a namespace slice of the model (spec §4.2 "deterministic JSON
// serialization with sorted keys"; invariant 4). Every slice is sorted by
// its natural key so two processes that apply the same operations in the
// same order produce byte-identical output.
type ExpandedDocument struct {
	Namespace    string             `json:"namespace"`
	NamespaceID  string             `json:"namespaceId"`
	Agents       []AgentDoc         `json:"agents"`
	Activities   []ActivityDoc      `json:"activities"`
	Entities     []EntityDoc        `json:"entities"`
	Associations []AssociationDoc   `json:"associations"`
	Attributions []AttributionDoc   `json:"attributions"`
	Delegations  []DelegationDoc    `json:"delegations"`
	Usages       []UsageDoc         `json:"usages"`
	Generations  []GenerationDoc    `json:"generations"`
	InformedBys  []InformedByDoc    `json:"wasInformedBy"`
	Derivations  []DerivationDoc    `json:"derivations"`
}

type AgentDoc struct {
	ID         string                `json:"id"`
	ExternalID string                `json:"externalId"`
	DomainType *string               `json:"domainType,omitempty"`
	Attributes []Attribute           `json:"attributes"`
	Identity   *string               `json:"currentIdentity,omitempty"`
}

type ActivityDoc struct {
	ID         string      `json:"id"`
	ExternalID string      `json:"externalId"`
	DomainType *string     `json:"domainType,omitempty"`
	Started    *string     `json:"started,omitempty"`
	Ended      *string     `json:"ended,omitempty"`
	Attributes []Attribute `json:"attributes"`
}

type EntityDoc struct {
	ID            string      `json:"id"`
	ExternalID    string      `json:"externalId"`
	DomainType    *string     `json:"domainType,omitempty"`
	Attributes    []Attribute `json:"attributes"`
	Signature     *string     `json:"evidenceSignature,omitempty"`
	SignatureTime *string     `json:"evidenceSignatureTime,omitempty"`
	Locator       *string     `json:"evidenceLocator,omitempty"`
}

type AssociationDoc struct {
	ID       string `json:"id"`
	Agent    string `json:"agent"`
	Activity string `json:"activity"`
	Role     string `json:"role"`
}

type AttributionDoc struct {
	ID     string `json:"id"`
	Agent  string `json:"agent"`
	Entity string `json:"entity"`
	Role   string `json:"role"`
}

type DelegationDoc struct {
	ID          string `json:"id"`
	Delegate    string `json:"delegate"`
	Responsible string `json:"responsible"`
	Role        string `json:"role"`
	Activity    string `json:"activity"`
}

type UsageDoc struct {
	Activity string `json:"activity"`
	Entity   string `json:"entity"`
}

type GenerationDoc struct {
	Activity string `json:"activity"`
	Entity   string `json:"entity"`
}

type InformedByDoc struct {
	Activity  string `json:"activity"`
	Informing string `json:"informing"`
}

type DerivationDoc struct {
	Generated string  `json:"generated"`
	Used      string  `json:"used"`
	Kind      string  `json:"kind"`
	Activity  *string `json:"activity,omitempty"`
}

// ToExpandedJSON renders the single namespace ns to its canonical,
// sorted-order JSON form.
func (m *Model) ToExpandedJSON(ns id.NamespaceID) ([]byte, error) {
	doc := ExpandedDocument{
		Namespace:   ns.ExternalID,
		NamespaceID: ns.UUID.String(),
	}

	for key, a := range m.Agents {
		if key.Namespace != ns {
			continue
		}

		var identity *string
		if a.CurrentIdentity != nil {
			s := id.Compact(id.IdentityID{AgentExternalID: a.CurrentIdentity.AgentExternalID, PublicKey: a.CurrentIdentity.PublicKey})
			identity = &s
		}

		doc.Agents = append(doc.Agents, AgentDoc{
			ID:         id.Compact(id.AgentID{ExternalID: a.ExternalID}),
			ExternalID: a.ExternalID,
			DomainType: a.DomainType,
			Attributes: sortedAttributes(a.Attributes),
			Identity:   identity,
		})
	}

	for key, a := range m.Activities {
		if key.Namespace != ns {
			continue
		}

		doc.Activities = append(doc.Activities, ActivityDoc{
			ID:         id.Compact(id.ActivityID{ExternalID: a.ExternalID}),
			ExternalID: a.ExternalID,
			DomainType: a.DomainType,
			Started:    timePtr(a.Started),
			Ended:      timePtr(a.Ended),
			Attributes: sortedAttributes(a.Attributes),
		})
	}

	for key, e := range m.Entities {
		if key.Namespace != ns {
			continue
		}

		ed := EntityDoc{
			ID:         id.Compact(id.EntityID{ExternalID: e.ExternalID}),
			ExternalID: e.ExternalID,
			DomainType: e.DomainType,
			Attributes: sortedAttributes(e.Attributes),
		}

		if e.Evidence != nil {
			ed.Signature = &e.Evidence.Signature
			ed.SignatureTime = timePtr(&e.Evidence.SignatureTime)
			ed.Locator = e.Evidence.Locator
		}

		doc.Entities = append(doc.Entities, ed)
	}

	for key, rel := range m.Associations {
		if key.Namespace != ns {
			continue
		}

		doc.Associations = append(doc.Associations, AssociationDoc{
			ID:       id.Compact(id.AssociationID{AgentExternalID: rel.Key.Agent, ActivityExternalID: rel.Key.Activity, Role: nonEmptyPtr(rel.Key.Role)}),
			Agent:    rel.Key.Agent,
			Activity: rel.Key.Activity,
			Role:     rel.Key.Role,
		})
	}

	for key, rel := range m.Attributions {
		if key.Namespace != ns {
			continue
		}

		doc.Attributions = append(doc.Attributions, AttributionDoc{
			ID:     id.Compact(id.AttributionID{AgentExternalID: rel.Key.Agent, EntityExternalID: rel.Key.Entity, Role: nonEmptyPtr(rel.Key.Role)}),
			Agent:  rel.Key.Agent,
			Entity: rel.Key.Entity,
			Role:   rel.Key.Role,
		})
	}

	for key, rel := range m.Delegations {
		if key.Namespace != ns {
			continue
		}

		doc.Delegations = append(doc.Delegations, DelegationDoc{
			ID: id.Compact(id.DelegationID{
				DelegateExternalID:    rel.Key.Delegate,
				ResponsibleExternalID: rel.Key.Responsible,
				Role:                  nonEmptyPtr(rel.Key.Role),
				ActivityExternalID:    nonEmptyPtr(rel.Key.Activity),
			}),
			Delegate:    rel.Key.Delegate,
			Responsible: rel.Key.Responsible,
			Role:        rel.Key.Role,
			Activity:    rel.Key.Activity,
		})
	}

	for key, rel := range m.Usages {
		if key.Namespace != ns {
			continue
		}

		doc.Usages = append(doc.Usages, UsageDoc{Activity: rel.Key.Activity, Entity: rel.Key.Entity})
	}

	for key, rel := range m.Generations {
		if key.Namespace != ns {
			continue
		}

		doc.Generations = append(doc.Generations, GenerationDoc{Activity: rel.Key.Activity, Entity: rel.Key.Entity})
	}

	for key, rel := range m.InformedBys {
		if key.Namespace != ns {
			continue
		}

		doc.InformedBys = append(doc.InformedBys, InformedByDoc{Activity: rel.Key.Activity, Informing: rel.Key.Informing})
	}

	for key, rel := range m.Derivations {
		if key.Namespace != ns {
			continue
		}

		doc.Derivations = append(doc.Derivations, DerivationDoc{
			Generated: rel.Key.Generated,
			Used:      rel.Key.Used,
			Kind:      string(rel.Kind),
			Activity:  rel.Activity,
		})
	}

	sortDoc(&doc)

	return json.Marshal(doc)
}

func sortedAttributes(attrs map[string]Attribute) []Attribute {
	out := make([]Attribute, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

func timePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}

	s := t.UTC().Format(time.RFC3339Nano)

	return &s
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func sortDoc(doc *ExpandedDocument) {
	sort.Slice(doc.Agents, func(i, j int) bool { return doc.Agents[i].ExternalID < doc.Agents[j].ExternalID })
	sort.Slice(doc.Activities, func(i, j int) bool { return doc.Activities[i].ExternalID < doc.Activities[j].ExternalID })
	sort.Slice(doc.Entities, func(i, j int) bool { return doc.Entities[i].ExternalID < doc.Entities[j].ExternalID })

	sort.Slice(doc.Associations, func(i, j int) bool { return doc.Associations[i].ID < doc.Associations[j].ID })
	sort.Slice(doc.Attributions, func(i, j int) bool { return doc.Attributions[i].ID < doc.Attributions[j].ID })
	sort.Slice(doc.Delegations, func(i, j int) bool { return doc.Delegations[i].ID < doc.Delegations[j].ID })

	sort.Slice(doc.Usages, func(i, j int) bool {
		if doc.Usages[i].Activity != doc.Usages[j].Activity {
			return doc.Usages[i].Activity < doc.Usages[j].Activity
		}

		return doc.Usages[i].Entity < doc.Usages[j].Entity
	})

	sort.Slice(doc.Generations, func(i, j int) bool {
		if doc.Generations[i].Activity != doc.Generations[j].Activity {
			return doc.Generations[i].Activity < doc.Generations[j].Activity
		}

		return doc.Generations[i].Entity < doc.Generations[j].Entity
	})

	sort.Slice(doc.InformedBys, func(i, j int) bool {
		if doc.InformedBys[i].Activity != doc.InformedBys[j].Activity {
			return doc.InformedBys[i].Activity < doc.InformedBys[j].Activity
		}

		return doc.InformedBys[i].Informing < doc.InformedBys[j].Informing
	})

	sort.Slice(doc.Derivations, func(i, j int) bool {
		if doc.Derivations[i].Generated != doc.Derivations[j].Generated {
			return doc.Derivations[i].Generated < doc.Derivations[j].Generated
		}

		return doc.Derivations[i].Used < doc.Derivations[j].Used
	})
}

// FromExpandedJSON parses the canonical rendering produced by
// ToExpandedJSON back into a standalone single-namespace Model (spec §4.2,
// testable property 4: "from_expanded_json(to_expanded_json(m)) == m").
// The caller compares the namespace slice of its own model against the
// result; FromExpandedJSON itself never sees or needs the rest of the
// model the namespace came from.
func FromExpandedJSON(data []byte) (*Model, id.NamespaceID, error) {
	var doc ExpandedDocument

	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, id.NamespaceID{}, chronerr.ProcessorError{Message: "unmarshal expanded document", Err: err}
	}

	u, err := uuid.Parse(doc.NamespaceID)
	if err != nil {
		return nil, id.NamespaceID{}, chronerr.ProcessorError{Message: "parse namespace uuid", Err: err}
	}

	ns := id.NamespaceID{ExternalID: doc.Namespace, UUID: u}

	m := New()
	m.AddNamespace(ns)

	for _, a := range doc.Agents {
		agent := m.AddAgent(ns, a.ExternalID)
		agent.DomainType = a.DomainType
		agent.Attributes = attrMap(a.Attributes)

		if a.Identity != nil {
			parsed, err := id.Parse(*a.Identity)
			if err != nil {
				return nil, id.NamespaceID{}, chronerr.ProcessorError{Message: "parse agent current identity", Err: err}
			}

			idv, ok := parsed.(id.IdentityID)
			if !ok {
				return nil, id.NamespaceID{}, chronerr.ProcessorError{Message: fmt.Sprintf("expected identity id, got %T", parsed)}
			}

			agent.CurrentIdentity = &IdentityRef{AgentExternalID: idv.AgentExternalID, PublicKey: idv.PublicKey}
			agent.IdentityHistory = append(agent.IdentityHistory, Identity{
				AgentExternalID: idv.AgentExternalID,
				PublicKey:       idv.PublicKey,
			})
		}
	}

	for _, a := range doc.Activities {
		activity := m.AddActivity(ns, a.ExternalID)
		activity.DomainType = a.DomainType
		activity.Attributes = attrMap(a.Attributes)

		started, err := parseTimePtr(a.Started)
		if err != nil {
			return nil, id.NamespaceID{}, err
		}

		ended, err := parseTimePtr(a.Ended)
		if err != nil {
			return nil, id.NamespaceID{}, err
		}

		activity.Started = started
		activity.Ended = ended
	}

	for _, e := range doc.Entities {
		entity := m.AddEntity(ns, e.ExternalID)
		entity.DomainType = e.DomainType
		entity.Attributes = attrMap(e.Attributes)

		if e.Signature != nil {
			sigTime, err := parseTimePtr(e.SignatureTime)
			if err != nil {
				return nil, id.NamespaceID{}, err
			}

			var t time.Time
			if sigTime != nil {
				t = *sigTime
			}

			entity.Evidence = &Evidence{Signature: *e.Signature, SignatureTime: t, Locator: e.Locator}
		}
	}

	for _, rel := range doc.Associations {
		m.AddAssociation(AssociationKey{Namespace: ns, Agent: rel.Agent, Activity: rel.Activity, Role: rel.Role})
	}

	for _, rel := range doc.Attributions {
		m.AddAttribution(AttributionKey{Namespace: ns, Agent: rel.Agent, Entity: rel.Entity, Role: rel.Role})
	}

	for _, rel := range doc.Delegations {
		m.AddDelegation(DelegationKey{Namespace: ns, Delegate: rel.Delegate, Responsible: rel.Responsible, Role: rel.Role, Activity: rel.Activity})
	}

	for _, rel := range doc.Usages {
		m.AddUsage(UsageKey{Namespace: ns, Activity: rel.Activity, Entity: rel.Entity})
	}

	for _, rel := range doc.Generations {
		m.AddGeneration(GenerationKey{Namespace: ns, Activity: rel.Activity, Entity: rel.Entity})
	}

	for _, rel := range doc.InformedBys {
		m.AddInformedBy(InformedByKey{Namespace: ns, Activity: rel.Activity, Informing: rel.Informing})
	}

	for _, rel := range doc.Derivations {
		m.SetDerivation(DerivationKey{Namespace: ns, Generated: rel.Generated, Used: rel.Used}, DerivationKind(rel.Kind), rel.Activity)
	}

	return m, ns, nil
}

func attrMap(attrs []Attribute) map[string]Attribute {
	out := make(map[string]Attribute, len(attrs))
	for _, a := range attrs {
		out[a.Name] = a
	}

	return out
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil //nolint:nilnil
	}

	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return nil, chronerr.ProcessorError{Message: "parse timestamp " + *s, Err: err}
	}

	t = t.UTC()

	return &t, nil
}

// CompactStableOrder re-marshals a JSON document with every object's keys
// sorted lexicographically, independent of struct field declaration order
// (spec §4.2, testable property 5: repeated calls yield byte-identical
// output). ToExpandedJSON emits deterministically ordered slices but
// struct-ordered object keys, and does not call this function.
func CompactStableOrder(data []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, chronerr.ProcessorError{Message: "unmarshal for canonicalization", Err: err}
	}

	var buf bytes.Buffer
	if err := canonicalEncode(&buf, v); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func canonicalEncode(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		buf.WriteByte('{')

		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}

			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}

			buf.Write(kb)
			buf.WriteByte(':')

			if err := canonicalEncode(buf, val[k]); err != nil {
				return err
			}
		}

		buf.WriteByte('}')

		return nil

	case []any:
		buf.WriteByte('[')

		for i, e := range val {
			if i > 0 {
				buf.WriteByte(',')
			}

			if err := canonicalEncode(buf, e); err != nil {
				return err
			}
		}

		buf.WriteByte(']')

		return nil

	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}

		buf.Write(b)

		return nil
	}
}
