package tx

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chronicleworks/chronicle/internal/prov/id"
	"github.com/chronicleworks/chronicle/internal/prov/model"
	"github.com/chronicleworks/chronicle/internal/prov/op"
	"github.com/chronicleworks/chronicle/pkg/chronerr"
)

// wireOp is the tagged-record rendering of a single op.Operation (spec
// §6.1). Fields is a self-describing name->value map rather than a
// positional struct. decodeOp reads only the fields each kind defines and
// discards any others, and an operation of an unrecognized Kind fails the
// decode of the whole payload.
type wireOp struct {
	Kind   string         `msgpack:"kind"`
	Fields map[string]any `msgpack:"fields"`
}

func encodeOp(o op.Operation) (wireOp, error) {
	switch v := o.(type) {
	case op.CreateNamespace:
		return wireOp{Kind: string(op.KindCreateNamespace), Fields: map[string]any{"ns": nsFields(v.NS)}}, nil

	case op.AgentExists:
		return wireOp{Kind: string(op.KindAgentExists), Fields: map[string]any{"ns": nsFields(v.NS), "externalId": v.ExternalID}}, nil

	case op.ActivityExists:
		return wireOp{Kind: string(op.KindActivityExists), Fields: map[string]any{"ns": nsFields(v.NS), "externalId": v.ExternalID}}, nil

	case op.EntityExists:
		return wireOp{Kind: string(op.KindEntityExists), Fields: map[string]any{"ns": nsFields(v.NS), "externalId": v.ExternalID}}, nil

	case op.StartActivity:
		return wireOp{Kind: string(op.KindStartActivity), Fields: map[string]any{
			"ns": nsFields(v.NS), "activityId": v.ActivityID, "time": formatTime(v.Time),
		}}, nil

	case op.EndActivity:
		return wireOp{Kind: string(op.KindEndActivity), Fields: map[string]any{
			"ns": nsFields(v.NS), "activityId": v.ActivityID, "time": formatTime(v.Time),
		}}, nil

	case op.ActivityUses:
		return wireOp{Kind: string(op.KindActivityUses), Fields: map[string]any{
			"ns": nsFields(v.NS), "entityId": v.EntityID, "activityId": v.ActivityID,
		}}, nil

	case op.WasGeneratedBy:
		return wireOp{Kind: string(op.KindWasGeneratedBy), Fields: map[string]any{
			"ns": nsFields(v.NS), "entityId": v.EntityID, "activityId": v.ActivityID,
		}}, nil

	case op.WasInformedBy:
		return wireOp{Kind: string(op.KindWasInformedBy), Fields: map[string]any{
			"ns": nsFields(v.NS), "activityId": v.ActivityID, "informingActivity": v.InformingActivity,
		}}, nil

	case op.WasAssociatedWith:
		return wireOp{Kind: string(op.KindWasAssociatedWith), Fields: map[string]any{
			"ns": nsFields(v.NS), "agentId": v.AgentID, "activityId": v.ActivityID, "role": optStr(v.Role),
		}}, nil

	case op.WasAttributedTo:
		return wireOp{Kind: string(op.KindWasAttributedTo), Fields: map[string]any{
			"ns": nsFields(v.NS), "agentId": v.AgentID, "entityId": v.EntityID, "role": optStr(v.Role),
		}}, nil

	case op.ActsOnBehalfOf:
		return wireOp{Kind: string(op.KindActsOnBehalfOf), Fields: map[string]any{
			"ns": nsFields(v.NS), "delegateId": v.DelegateID, "responsibleId": v.ResponsibleID,
			"activityId": optStr(v.ActivityID), "role": optStr(v.Role),
		}}, nil

	case op.EntityDerive:
		return wireOp{Kind: string(op.KindEntityDerive), Fields: map[string]any{
			"ns": nsFields(v.NS), "entityId": v.EntityID, "usedId": v.UsedID,
			"activityId": optStr(v.ActivityID), "kind": string(v.DerivationKind),
		}}, nil

	case op.SetAttributes:
		return wireOp{Kind: string(op.KindSetAttributes), Fields: map[string]any{
			"ns": nsFields(v.NS), "subject": string(v.Subject), "externalId": v.ExternalID,
			"domainType": optStr(v.DomainType), "attributes": attrsToWire(v.Attributes),
		}}, nil

	case op.RegisterKey:
		return wireOp{Kind: string(op.KindRegisterKey), Fields: map[string]any{
			"ns": nsFields(v.NS), "agentId": v.AgentID, "publicKey": v.PublicKey,
		}}, nil

	default:
		return wireOp{}, fmt.Errorf("tx: unknown operation type %T", o)
	}
}

func decodeOp(w wireOp) (op.Operation, error) {
	f := fieldReader{kind: w.Kind, m: w.Fields}

	ns, err := f.ns("ns")
	if err != nil {
		return nil, err
	}

	switch op.Kind(w.Kind) {
	case op.KindCreateNamespace:
		return op.CreateNamespace{NS: ns}, f.err()

	case op.KindAgentExists:
		return op.AgentExists{NS: ns, ExternalID: f.str("externalId")}, f.err()

	case op.KindActivityExists:
		return op.ActivityExists{NS: ns, ExternalID: f.str("externalId")}, f.err()

	case op.KindEntityExists:
		return op.EntityExists{NS: ns, ExternalID: f.str("externalId")}, f.err()

	case op.KindStartActivity:
		return op.StartActivity{NS: ns, ActivityID: f.str("activityId"), Time: f.time("time")}, f.err()

	case op.KindEndActivity:
		return op.EndActivity{NS: ns, ActivityID: f.str("activityId"), Time: f.time("time")}, f.err()

	case op.KindActivityUses:
		return op.ActivityUses{NS: ns, EntityID: f.str("entityId"), ActivityID: f.str("activityId")}, f.err()

	case op.KindWasGeneratedBy:
		return op.WasGeneratedBy{NS: ns, EntityID: f.str("entityId"), ActivityID: f.str("activityId")}, f.err()

	case op.KindWasInformedBy:
		return op.WasInformedBy{NS: ns, ActivityID: f.str("activityId"), InformingActivity: f.str("informingActivity")}, f.err()

	case op.KindWasAssociatedWith:
		return op.WasAssociatedWith{NS: ns, AgentID: f.str("agentId"), ActivityID: f.str("activityId"), Role: f.optStr("role")}, f.err()

	case op.KindWasAttributedTo:
		return op.WasAttributedTo{NS: ns, AgentID: f.str("agentId"), EntityID: f.str("entityId"), Role: f.optStr("role")}, f.err()

	case op.KindActsOnBehalfOf:
		return op.ActsOnBehalfOf{
			NS: ns, DelegateID: f.str("delegateId"), ResponsibleID: f.str("responsibleId"),
			ActivityID: f.optStr("activityId"), Role: f.optStr("role"),
		}, f.err()

	case op.KindEntityDerive:
		return op.EntityDerive{
			NS: ns, EntityID: f.str("entityId"), UsedID: f.str("usedId"),
			ActivityID: f.optStr("activityId"), DerivationKind: model.DerivationKind(f.str("kind")),
		}, f.err()

	case op.KindSetAttributes:
		return op.SetAttributes{
			NS: ns, Subject: op.AttributeSubject(f.str("subject")), ExternalID: f.str("externalId"),
			DomainType: f.optStr("domainType"), Attributes: f.attrs("attributes"),
		}, f.err()

	case op.KindRegisterKey:
		return op.RegisterKey{NS: ns, AgentID: f.str("agentId"), PublicKey: f.str("publicKey")}, f.err()

	default:
		return nil, chronerr.ProcessorError{Message: fmt.Sprintf("tx: unknown operation kind %q", w.Kind)}
	}
}

func nsFields(ns id.NamespaceID) map[string]any {
	return map[string]any{"externalId": ns.ExternalID, "uuid": ns.UUID.String()}
}

func optStr(s *string) any {
	if s == nil {
		return nil
	}

	return *s
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func attrsToWire(attrs []model.Attribute) []any {
	out := make([]any, 0, len(attrs))

	for _, a := range attrs {
		out = append(out, map[string]any{
			"name":        a.Name,
			"kind":        string(a.Kind),
			"stringValue": a.StringValue,
			"intValue":    a.IntValue,
			"boolValue":   a.BoolValue,
			"jsonValue":   string(a.JSONValue),
		})
	}

	return out
}

// fieldReader pulls typed values out of a decoded wireOp.Fields map,
// accumulating the first conversion error so call sites can chain field
// reads and check once at the end (the same shape as the teacher's
// row.Scan error handling in its postgres adapters, adapted to a map
// instead of a *sql.Rows cursor).
type fieldReader struct {
	kind    string
	m       map[string]any
	firstErr error
}

func (f *fieldReader) fail(field string, reason string) {
	if f.firstErr == nil {
		f.firstErr = chronerr.ProcessorError{Message: fmt.Sprintf("tx: operation %q field %q: %s", f.kind, field, reason)}
	}
}

func (f *fieldReader) err() error { return f.firstErr }

func (f *fieldReader) str(field string) string {
	v, ok := f.m[field].(string)
	if !ok {
		f.fail(field, "expected string")
	}

	return v
}

func (f *fieldReader) optStr(field string) *string {
	v := f.m[field]
	if v == nil {
		return nil
	}

	s, ok := v.(string)
	if !ok {
		f.fail(field, "expected string or nil")

		return nil
	}

	return &s
}

func (f *fieldReader) time(field string) time.Time {
	s := f.str(field)

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		f.fail(field, "unparsable timestamp: "+err.Error())

		return time.Time{}
	}

	return t.UTC()
}

func (f *fieldReader) ns(field string) (id.NamespaceID, error) {
	raw, ok := f.m[field].(map[string]any)
	if !ok {
		return id.NamespaceID{}, chronerr.ProcessorError{Message: fmt.Sprintf("tx: operation %q field %q: expected namespace map", f.kind, field)}
	}

	extID, _ := raw["externalId"].(string)

	uuidStr, _ := raw["uuid"].(string)

	u, err := uuid.Parse(uuidStr)
	if err != nil {
		return id.NamespaceID{}, chronerr.ProcessorError{Message: fmt.Sprintf("tx: operation %q field %q: %s", f.kind, field, err.Error())}
	}

	return id.NamespaceID{ExternalID: extID, UUID: u}, nil
}

func (f *fieldReader) attrs(field string) []model.Attribute {
	raw, ok := f.m[field].([]any)
	if !ok {
		f.fail(field, "expected attribute list")

		return nil
	}

	out := make([]model.Attribute, 0, len(raw))

	for _, item := range raw {
		am, ok := item.(map[string]any)
		if !ok {
			f.fail(field, "expected attribute object")

			return nil
		}

		name, _ := am["name"].(string)
		kind, _ := am["kind"].(string)

		a := model.Attribute{Name: name, Kind: model.PrimitiveKind(kind)}

		switch a.Kind {
		case model.PrimitiveString:
			a.StringValue, _ = am["stringValue"].(string)
		case model.PrimitiveInt:
			a.IntValue = toInt64(am["intValue"])
		case model.PrimitiveBool:
			a.BoolValue, _ = am["boolValue"].(bool)
		case model.PrimitiveJSON:
			s, _ := am["jsonValue"].(string)
			a.JSONValue = []byte(s)
		}

		out = append(out, a)
	}

	return out
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
