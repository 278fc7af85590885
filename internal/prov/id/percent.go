package id

import (
	"fmt"
	"strings"
)

// percentEncode escapes every byte outside [A-Za-z0-9] as %XX (uppercase
// hex), making IRI construction infallible over arbitrary external-id
// strings (spec §3.1). This mirrors percent-encoding against a
// "non-alphanumeric" reservation set, not RFC 3986 URL-query escaping
// (which leaves '-', '_', '.', '~' unescaped and would make '.'-bearing
// ids collide with path separators in some fragment consumers).
func percentEncode(s string) string {
	var b strings.Builder

	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAlphaNumeric(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}

	return b.String()
}

// percentDecode reverses percentEncode. Since every non-alphanumeric byte
// was escaped, no other decoding ambiguity (e.g. '+' as space) applies.
func percentDecode(s string) (string, error) {
	var b strings.Builder

	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			b.WriteByte(s[i])
			continue
		}

		if i+2 >= len(s) {
			return "", fmt.Errorf("id: truncated percent-escape in %q", s)
		}

		var v byte
		if _, err := fmt.Sscanf(s[i+1:i+3], "%02X", &v); err != nil {
			return "", fmt.Errorf("id: invalid percent-escape %q: %w", s[i:i+3], err)
		}

		b.WriteByte(v)
		i += 2
	}

	return b.String(), nil
}

func isAlphaNumeric(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
