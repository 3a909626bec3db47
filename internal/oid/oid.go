// Package oid implements the dotted-numeric object identifiers that key
// schema elements in LDAP (RFC 4512 §1.4). Values are compared
// structurally, never as strings, since "1.2.3" and "1.02.3" denote the
// same identifier.
package oid

import (
	"fmt"
	"strconv"
	"strings"
)

// OID is a parsed dotted-numeric identifier, e.g. "2.5.4.3".
type OID struct {
	arcs []int
}

// Parse parses a dotted-numeric string into an OID.
func Parse(s string) (OID, error) {
	if s == "" {
		return OID{}, fmt.Errorf("oid: empty string")
	}
	parts := strings.Split(s, ".")
	arcs := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return OID{}, fmt.Errorf("oid: invalid arc %q in %q", p, s)
		}
		arcs[i] = n
	}
	return OID{arcs: arcs}, nil
}

// MustParse is Parse but panics on error; used for literal OIDs in tests
// and built-in schema tables.
func MustParse(s string) OID {
	o, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return o
}

// Zero reports whether this OID was never assigned a value.
func (o OID) Zero() bool {
	return len(o.arcs) == 0
}

// Equal compares two OIDs structurally.
func (o OID) Equal(other OID) bool {
	if len(o.arcs) != len(other.arcs) {
		return false
	}
	for i, v := range o.arcs {
		if other.arcs[i] != v {
			return false
		}
	}
	return true
}

// Less gives a deterministic total order over OIDs, used only to keep
// generated error messages and test output stable.
func (o OID) Less(other OID) bool {
	for i := 0; i < len(o.arcs) && i < len(other.arcs); i++ {
		if o.arcs[i] != other.arcs[i] {
			return o.arcs[i] < other.arcs[i]
		}
	}
	return len(o.arcs) < len(other.arcs)
}

// String renders the dotted-numeric form.
func (o OID) String() string {
	parts := make([]string, len(o.arcs))
	for i, a := range o.arcs {
		parts[i] = strconv.Itoa(a)
	}
	return strings.Join(parts, ".")
}
