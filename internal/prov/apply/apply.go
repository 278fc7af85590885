// Package apply implements the pure fold over a model.Model that turns a
// batch of op.Operation values into a new model plus the delta of facts
// it added, or a Contradiction (spec §4.4).
package apply

import (
	"fmt"

	"github.com/chronicleworks/chronicle/internal/prov/model"
	"github.com/chronicleworks/chronicle/internal/prov/op"
	"github.com/chronicleworks/chronicle/pkg/chronerr"
)

// Result is the successful outcome of Apply: the new model state and the
// subset of operations that represent newly-recorded facts (the delta).
// Callers use its length to tell a submission that records nothing new
// from one that does.
type Result struct {
	Model *model.Model
	Delta []op.Operation
}

// Apply expands every operation into its implied prerequisites, checks
// each expanded operation's contradiction predicate against the running
// accumulator, and either returns the fully-applied model or a zero
// Result with the first contradiction encountered. It works on a clone,
// so in is never modified (spec §4.4: "atomic per-submission").
func Apply(in *model.Model, ops []op.Operation) (Result, error) {
	acc := in.Clone()

	var delta []op.Operation

	for _, o := range ops {
		expanded := append(implied(acc, o), o)

		for _, e := range expanded {
			changed, err := applyOne(acc, e)
			if err != nil {
				return Result{}, err
			}

			if changed {
				delta = append(delta, e)
			}
		}
	}

	return Result{Model: acc, Delta: delta}, nil
}

// implied returns the *Exists / CreateNamespace operations required to
// make o's referents well-formed, in the order they must be applied
// before o itself (spec §4.3 "Implied operations").
func implied(m *model.Model, o op.Operation) []op.Operation {
	var out []op.Operation

	ns := o.Namespace()
	if !m.HasNamespace(ns) {
		out = append(out, op.CreateNamespace{NS: ns})
	}

	addAgent := func(extID string) { out = append(out, op.AgentExists{NS: ns, ExternalID: extID}) }
	addActivity := func(extID string) { out = append(out, op.ActivityExists{NS: ns, ExternalID: extID}) }
	addEntity := func(extID string) { out = append(out, op.EntityExists{NS: ns, ExternalID: extID}) }

	switch v := o.(type) {
	case op.AgentExists:
	case op.ActivityExists:
	case op.EntityExists:
	case op.CreateNamespace:
	case op.ActsOnBehalfOf:
		addAgent(v.DelegateID)
		addAgent(v.ResponsibleID)

		if v.ActivityID != nil {
			addActivity(*v.ActivityID)
		}
	case op.RegisterKey:
		addAgent(v.AgentID)
	case op.StartActivity:
		addActivity(v.ActivityID)
	case op.EndActivity:
		addActivity(v.ActivityID)
	case op.ActivityUses:
		addEntity(v.EntityID)
		addActivity(v.ActivityID)
	case op.WasGeneratedBy:
		addEntity(v.EntityID)
		addActivity(v.ActivityID)
	case op.EntityDerive:
		addEntity(v.EntityID)
		addEntity(v.UsedID)

		if v.ActivityID != nil {
			addActivity(*v.ActivityID)
		}
	case op.SetAttributes:
		switch v.Subject {
		case op.SubjectAgent:
			addAgent(v.ExternalID)
		case op.SubjectActivity:
			addActivity(v.ExternalID)
		case op.SubjectEntity:
			addEntity(v.ExternalID)
		}
	case op.WasAssociatedWith:
		addAgent(v.AgentID)
		addActivity(v.ActivityID)
	case op.WasAttributedTo:
		addAgent(v.AgentID)
		addEntity(v.EntityID)
	case op.WasInformedBy:
		addActivity(v.ActivityID)
		addActivity(v.InformingActivity)
	}

	return dedupeImplied(out, m)
}

// dedupeImplied drops implied operations that would be no-ops against m,
// and collapses duplicate implied operations within the same expansion
// (e.g. ActsOnBehalfOf naming the same agent as delegate and responsible).
func dedupeImplied(ops []op.Operation, m *model.Model) []op.Operation {
	seen := map[string]bool{}

	var out []op.Operation

	for _, o := range ops {
		var key string

		switch v := o.(type) {
		case op.CreateNamespace:
			if m.HasNamespace(v.NS) {
				continue
			}

			key = "ns:" + v.NS.String()
		case op.AgentExists:
			if _, ok := m.GetAgent(v.NS, v.ExternalID); ok {
				continue
			}

			key = "agent:" + v.NS.String() + ":" + v.ExternalID
		case op.ActivityExists:
			if _, ok := m.GetActivity(v.NS, v.ExternalID); ok {
				continue
			}

			key = "activity:" + v.NS.String() + ":" + v.ExternalID
		case op.EntityExists:
			if _, ok := m.GetEntity(v.NS, v.ExternalID); ok {
				continue
			}

			key = "entity:" + v.NS.String() + ":" + v.ExternalID
		}

		if seen[key] {
			continue
		}

		seen[key] = true

		out = append(out, o)
	}

	return out
}

// applyOne mutates acc in place for a single (already-implied-expanded)
// operation, returning whether it produced a new fact and any
// contradiction encountered.
func applyOne(acc *model.Model, o op.Operation) (bool, error) {
	switch v := o.(type) {
	case op.CreateNamespace:
		if acc.HasNamespace(v.NS) {
			return false, nil
		}

		acc.AddNamespace(v.NS)

		return true, nil

	case op.AgentExists:
		_, existed := acc.GetAgent(v.NS, v.ExternalID)
		acc.AddAgent(v.NS, v.ExternalID)

		return !existed, nil

	case op.ActivityExists:
		_, existed := acc.GetActivity(v.NS, v.ExternalID)
		acc.AddActivity(v.NS, v.ExternalID)

		return !existed, nil

	case op.EntityExists:
		_, existed := acc.GetEntity(v.NS, v.ExternalID)
		acc.AddEntity(v.NS, v.ExternalID)

		return !existed, nil

	case op.StartActivity:
		a := acc.AddActivity(v.NS, v.ActivityID)

		if a.Started != nil {
			if !a.Started.Equal(v.Time) {
				return false, chronerr.Contradiction{
					Namespace:       v.NS.String(),
					ConflictingFact: fmt.Sprintf("activity %s started at %s", v.ActivityID, a.Started),
					AttemptedFact:   fmt.Sprintf("activity %s started at %s", v.ActivityID, v.Time),
				}
			}

			return false, nil
		}

		t := v.Time
		a.Started = &t

		return true, nil

	case op.EndActivity:
		a := acc.AddActivity(v.NS, v.ActivityID)

		if a.Ended != nil {
			if !a.Ended.Equal(v.Time) {
				return false, chronerr.Contradiction{
					Namespace:       v.NS.String(),
					ConflictingFact: fmt.Sprintf("activity %s ended at %s", v.ActivityID, a.Ended),
					AttemptedFact:   fmt.Sprintf("activity %s ended at %s", v.ActivityID, v.Time),
				}
			}

			return false, nil
		}

		t := v.Time
		a.Ended = &t

		return true, nil

	case op.ActivityUses:
		k := model.UsageKey{Namespace: v.NS, Activity: v.ActivityID, Entity: v.EntityID}
		if acc.HasUsage(k) {
			return false, nil
		}

		acc.AddUsage(k)

		return true, nil

	case op.WasGeneratedBy:
		k := model.GenerationKey{Namespace: v.NS, Activity: v.ActivityID, Entity: v.EntityID}
		if acc.HasGeneration(k) {
			return false, nil
		}

		acc.AddGeneration(k)

		return true, nil

	case op.WasInformedBy:
		k := model.InformedByKey{Namespace: v.NS, Activity: v.ActivityID, Informing: v.InformingActivity}
		if acc.HasInformedBy(k) {
			return false, nil
		}

		acc.AddInformedBy(k)

		return true, nil

	case op.WasAssociatedWith:
		k := model.AssociationKey{Namespace: v.NS, Agent: v.AgentID, Activity: v.ActivityID, Role: derefRole(v.Role)}
		if acc.HasAssociation(k) {
			return false, nil
		}

		acc.AddAssociation(k)

		return true, nil

	case op.WasAttributedTo:
		k := model.AttributionKey{Namespace: v.NS, Agent: v.AgentID, Entity: v.EntityID, Role: derefRole(v.Role)}
		if acc.HasAttribution(k) {
			return false, nil
		}

		acc.AddAttribution(k)

		return true, nil

	case op.ActsOnBehalfOf:
		k := model.DelegationKey{
			Namespace:   v.NS,
			Delegate:    v.DelegateID,
			Responsible: v.ResponsibleID,
			Role:        derefRole(v.Role),
			Activity:    derefRole(v.ActivityID),
		}
		if acc.HasDelegation(k) {
			return false, nil
		}

		acc.AddDelegation(k)

		return true, nil

	case op.EntityDerive:
		k := model.DerivationKey{Namespace: v.NS, Generated: v.EntityID, Used: v.UsedID}

		existing, ok := acc.GetDerivation(k)
		if ok {
			if existing.Kind != v.DerivationKind {
				return false, chronerr.Contradiction{
					Namespace:       v.NS.String(),
					ConflictingFact: fmt.Sprintf("derivation %s<-%s has kind %s", v.EntityID, v.UsedID, existing.Kind),
					AttemptedFact:   fmt.Sprintf("derivation %s<-%s has kind %s", v.EntityID, v.UsedID, v.DerivationKind),
				}
			}

			return false, nil
		}

		acc.SetDerivation(k, v.DerivationKind, v.ActivityID)

		return true, nil

	case op.RegisterKey:
		a := acc.AddAgent(v.NS, v.AgentID)

		if a.CurrentIdentity != nil && a.CurrentIdentity.PublicKey == v.PublicKey {
			return false, nil
		}

		a.IdentityHistory = append(a.IdentityHistory, model.Identity{
			AgentExternalID: v.AgentID,
			PublicKey:       v.PublicKey,
			RegisteredAt:    clockNow(),
		})
		a.CurrentIdentity = &model.IdentityRef{AgentExternalID: v.AgentID, PublicKey: v.PublicKey}

		return true, nil

	case op.SetAttributes:
		return applySetAttributes(acc, v)

	default:
		return false, fmt.Errorf("apply: unknown operation kind %T", o)
	}
}

func applySetAttributes(acc *model.Model, v op.SetAttributes) (bool, error) {
	var attrs map[string]model.Attribute

	var domainType **string

	switch v.Subject {
	case op.SubjectAgent:
		a := acc.AddAgent(v.NS, v.ExternalID)
		attrs = a.Attributes
		domainType = &a.DomainType
	case op.SubjectActivity:
		a := acc.AddActivity(v.NS, v.ExternalID)
		attrs = a.Attributes
		domainType = &a.DomainType
	case op.SubjectEntity:
		e := acc.AddEntity(v.NS, v.ExternalID)
		attrs = e.Attributes
		domainType = &e.DomainType
	default:
		return false, fmt.Errorf("apply: unknown attribute subject %q", v.Subject)
	}

	changed := false

	if v.DomainType != nil {
		if *domainType != nil {
			if **domainType != *v.DomainType {
				return false, chronerr.Contradiction{
					Namespace:       v.NS.String(),
					ConflictingFact: fmt.Sprintf("%s %s has domain type %s", v.Subject, v.ExternalID, **domainType),
					AttemptedFact:   fmt.Sprintf("%s %s has domain type %s", v.Subject, v.ExternalID, *v.DomainType),
				}
			}
		} else {
			dt := *v.DomainType
			*domainType = &dt
			changed = true
		}
	}

	for _, attr := range v.Attributes {
		existing, ok := attrs[attr.Name]
		if ok {
			if existing.Kind != attr.Kind {
				return false, chronerr.Contradiction{
					Namespace:       v.NS.String(),
					ConflictingFact: fmt.Sprintf("attribute %s has type %s", attr.Name, existing.Kind),
					AttemptedFact:   fmt.Sprintf("attribute %s has type %s", attr.Name, attr.Kind),
				}
			}

			if !existing.SameValue(attr) {
				attrs[attr.Name] = attr
				changed = true
			}

			continue
		}

		attrs[attr.Name] = attr
		changed = true
	}

	return changed, nil
}

func derefRole(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
