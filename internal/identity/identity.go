// Package identity implements the three identity kinds the API
// Dispatcher authenticates requests against (spec §4.10): Anonymous,
// Chronicle (superuser, used for internal submissions), and JWT-derived
// identities with a deterministic claim hash.
package identity

import (
	"crypto/sha512"
	"fmt"
	"sort"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chronicleworks/chronicle/pkg/chronerr"
)

type Kind string

const (
	KindAnonymous Kind = "Anonymous"
	KindChronicle Kind = "Chronicle"
	KindJWT       Kind = "JWT"
)

// Identity is the authenticated principal the policy engine evaluates
// against and the dispatcher propagates into the ledger transaction.
type Identity struct {
	Kind   Kind
	ID     string
	Claims map[string]string
}

func Anonymous() Identity { return Identity{Kind: KindAnonymous} }
func Chronicle() Identity { return Identity{Kind: KindChronicle, ID: "chronicle"} }

// FromClaims builds a JWT identity by hashing a deterministic sequence of
// (claim-name, claim-value) pairs from requiredClaims, in that order,
// SHA-512 with components separated by a single 0 byte (spec §4.10).
// Missing required claims are rejected.
func FromClaims(claims jwt.MapClaims, requiredClaims []string) (Identity, error) {
	h := sha512.New()

	out := make(map[string]string, len(requiredClaims))

	for _, name := range requiredClaims {
		raw, ok := claims[name]
		if !ok {
			return Identity{}, chronerr.IdentityError{Message: fmt.Sprintf("missing required claim %q", name)}
		}

		value := fmt.Sprintf("%v", raw)
		out[name] = value

		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(value))
		h.Write([]byte{0})
	}

	id := fmt.Sprintf("%x", h.Sum(nil))

	return Identity{Kind: KindJWT, ID: id, Claims: out}, nil
}

// SortedClaimNames returns the identity's claim keys in lexical order,
// for callers that need a stable rendering of the claim set.
func (i Identity) SortedClaimNames() []string {
	names := make([]string, 0, len(i.Claims))
	for k := range i.Claims {
		names = append(names, k)
	}

	sort.Strings(names)

	return names
}

func (i Identity) String() string {
	switch i.Kind {
	case KindAnonymous:
		return "anonymous"
	case KindChronicle:
		return "chronicle"
	default:
		return fmt.Sprintf("jwt:%s", i.ID)
	}
}
