package model

import (
	"encoding/json"
	"fmt"
)

// PrimitiveKind is the type tag of an attribute value (spec §3.2).
type PrimitiveKind string

const (
	PrimitiveString PrimitiveKind = "String"
	PrimitiveInt    PrimitiveKind = "Int"
	PrimitiveBool   PrimitiveKind = "Bool"
	PrimitiveJSON   PrimitiveKind = "JSON"
)

// Attribute is a (name, primitive) pair. Exactly one of the typed fields
// is populated, selected by Kind.
type Attribute struct {
	Name string        `json:"name"`
	Kind PrimitiveKind `json:"kind"`

	StringValue string          `json:"stringValue,omitempty"`
	IntValue    int64           `json:"intValue,omitempty"`
	BoolValue   bool            `json:"boolValue,omitempty"`
	JSONValue   json.RawMessage `json:"jsonValue,omitempty"`
}

// NewStringAttribute, NewIntAttribute, NewBoolAttribute, NewJSONAttribute
// construct a typed attribute value.
func NewStringAttribute(name, value string) Attribute {
	return Attribute{Name: name, Kind: PrimitiveString, StringValue: value}
}

func NewIntAttribute(name string, value int64) Attribute {
	return Attribute{Name: name, Kind: PrimitiveInt, IntValue: value}
}

func NewBoolAttribute(name string, value bool) Attribute {
	return Attribute{Name: name, Kind: PrimitiveBool, BoolValue: value}
}

func NewJSONAttribute(name string, value json.RawMessage) Attribute {
	return Attribute{Name: name, Kind: PrimitiveJSON, JSONValue: value}
}

// SameValue reports whether two attributes with the same name carry the
// identical value, used to decide whether a re-set is a no-op.
func (a Attribute) SameValue(other Attribute) bool {
	if a.Kind != other.Kind {
		return false
	}

	switch a.Kind {
	case PrimitiveString:
		return a.StringValue == other.StringValue
	case PrimitiveInt:
		return a.IntValue == other.IntValue
	case PrimitiveBool:
		return a.BoolValue == other.BoolValue
	case PrimitiveJSON:
		return string(a.JSONValue) == string(other.JSONValue)
	default:
		return false
	}
}

func (a Attribute) String() string {
	switch a.Kind {
	case PrimitiveString:
		return a.StringValue
	case PrimitiveInt:
		return fmt.Sprintf("%d", a.IntValue)
	case PrimitiveBool:
		return fmt.Sprintf("%t", a.BoolValue)
	case PrimitiveJSON:
		return string(a.JSONValue)
	default:
		return ""
	}
}
