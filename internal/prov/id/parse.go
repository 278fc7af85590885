package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ParseError reports why an IRI could not be parsed (spec §4.1: malformed
// IRI, unknown kind prefix, unparsable UUID in a namespace id).
type ParseError struct {
	Input   string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("id: cannot parse %q: %s", e.Input, e.Message)
}

// Parse dispatches on the first fragment component after the kind prefix
// and returns the typed ID. Accepts either the long or compact form.
func Parse(s string) (ID, error) {
	long := Expand(s)

	if !strings.HasPrefix(long, LongPrefix) {
		return nil, &ParseError{Input: s, Message: "missing chronicle IRI prefix"}
	}

	fragment := long[len(LongPrefix):]

	parts := strings.Split(fragment, ":")
	if len(parts) == 0 || parts[0] == "" {
		return nil, &ParseError{Input: s, Message: "empty fragment"}
	}

	decoded := make([]string, len(parts))

	for i, p := range parts {
		d, err := percentDecode(p)
		if err != nil {
			return nil, &ParseError{Input: s, Message: err.Error()}
		}

		decoded[i] = d
	}

	switch Kind(parts[0]) {
	case KindNamespace:
		return parseNamespace(s, decoded)
	case KindAgent:
		return parseSimple(s, decoded, KindAgent)
	case KindActivity:
		return parseSimple(s, decoded, KindActivity)
	case KindEntity:
		return parseSimple(s, decoded, KindEntity)
	case KindDomainType:
		return parseSimple(s, decoded, KindDomainType)
	case KindEvidence:
		return parseEvidence(s, decoded)
	case KindIdentity:
		return parseIdentity(s, decoded)
	case KindAssociation:
		return parseAssociation(s, decoded)
	case KindAttribution:
		return parseAttribution(s, decoded)
	case KindDelegation:
		return parseDelegation(s, decoded)
	default:
		return nil, &ParseError{Input: s, Message: fmt.Sprintf("unknown kind prefix %q", parts[0])}
	}
}

func parseNamespace(raw string, parts []string) (ID, error) {
	if len(parts) != 3 {
		return nil, &ParseError{Input: raw, Message: "namespace id requires external-id and uuid"}
	}

	u, err := uuid.Parse(parts[2])
	if err != nil {
		return nil, &ParseError{Input: raw, Message: "unparsable uuid: " + err.Error()}
	}

	return NamespaceID{ExternalID: parts[1], UUID: u}, nil
}

func parseSimple(raw string, parts []string, k Kind) (ID, error) {
	if len(parts) != 2 {
		return nil, &ParseError{Input: raw, Message: fmt.Sprintf("%s id requires exactly one external-id component", k)}
	}

	switch k {
	case KindAgent:
		return AgentID{ExternalID: parts[1]}, nil
	case KindActivity:
		return ActivityID{ExternalID: parts[1]}, nil
	case KindEntity:
		return EntityID{ExternalID: parts[1]}, nil
	case KindDomainType:
		return DomainTypeID{ExternalID: parts[1]}, nil
	default:
		return nil, &ParseError{Input: raw, Message: "unreachable kind " + string(k)}
	}
}

func parseEvidence(raw string, parts []string) (ID, error) {
	if len(parts) != 3 {
		return nil, &ParseError{Input: raw, Message: "evidence id requires entity external-id and signature"}
	}

	return EvidenceID{EntityExternalID: parts[1], Signature: parts[2]}, nil
}

func parseIdentity(raw string, parts []string) (ID, error) {
	if len(parts) != 3 {
		return nil, &ParseError{Input: raw, Message: "identity id requires agent external-id and public key"}
	}

	return IdentityID{AgentExternalID: parts[1], PublicKey: parts[2]}, nil
}

func parseQualifier(raw, component, prefix string) (*string, error) {
	if !strings.HasPrefix(component, prefix) {
		return nil, &ParseError{Input: raw, Message: fmt.Sprintf("expected %s component, got %q", prefix, component)}
	}

	value := component[len(prefix):]
	if value == "" {
		return nil, nil //nolint:nilnil // absent qualifier renders as empty value, not absent component
	}

	return &value, nil
}

func parseAssociation(raw string, parts []string) (ID, error) {
	if len(parts) != 4 {
		return nil, &ParseError{Input: raw, Message: "association id requires agent, activity and role= components"}
	}

	role, err := parseQualifier(raw, parts[3], "role=")
	if err != nil {
		return nil, err
	}

	return AssociationID{AgentExternalID: parts[1], ActivityExternalID: parts[2], Role: role}, nil
}

func parseAttribution(raw string, parts []string) (ID, error) {
	if len(parts) != 4 {
		return nil, &ParseError{Input: raw, Message: "attribution id requires agent, entity and role= components"}
	}

	role, err := parseQualifier(raw, parts[3], "role=")
	if err != nil {
		return nil, err
	}

	return AttributionID{AgentExternalID: parts[1], EntityExternalID: parts[2], Role: role}, nil
}

func parseDelegation(raw string, parts []string) (ID, error) {
	if len(parts) != 5 {
		return nil, &ParseError{Input: raw, Message: "delegation id requires delegate, responsible, role= and activity= components"}
	}

	role, err := parseQualifier(raw, parts[3], "role=")
	if err != nil {
		return nil, err
	}

	activity, err := parseQualifier(raw, parts[4], "activity=")
	if err != nil {
		return nil, err
	}

	return DelegationID{
		DelegateExternalID:    parts[1],
		ResponsibleExternalID: parts[2],
		Role:                  role,
		ActivityExternalID:    activity,
	}, nil
}
