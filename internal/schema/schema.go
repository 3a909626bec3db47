// Package schema models a directory server's schema: attribute-type and
// object-class definitions keyed by both OID and name (with aliases).
// Parsing the raw RFC 4512 schema-string grammar is left to an external
// collaborator; this package only consumes its parsed output.
package schema

import (
	"strings"

	"github.com/smarzola/ldaptoolkit/internal/oid"
)

// Kind is an object class's structural role.
type Kind int

const (
	Structural Kind = iota
	Auxiliary
	Abstract
)

// AttributeType is a schema attribute-type definition.
type AttributeType struct {
	OID         oid.OID
	Names       []string
	SingleValue bool
	SyntaxOID   oid.OID
}

// ObjectClass is a schema object-class definition.
type ObjectClass struct {
	OID   oid.OID
	Names []string
	Sup   []string // names of superior classes
	Kind  Kind
	Must  []oid.OID
	May   []oid.OID
}

// Schema indexes attribute-types and object-classes by OID and by every
// case-folded name/alias.
type Schema struct {
	attrsByOID map[string]*AttributeType
	attrByName map[string]oid.OID

	ocsByOID map[string]*ObjectClass
	ocByName map[string]oid.OID
}

// New builds an empty schema; use AddAttributeType/AddObjectClass to
// populate it, or a RawSchemaParser implementation to build one from a
// server's schema attributes.
func New() *Schema {
	return &Schema{
		attrsByOID: make(map[string]*AttributeType),
		attrByName: make(map[string]oid.OID),
		ocsByOID:   make(map[string]*ObjectClass),
		ocByName:   make(map[string]oid.OID),
	}
}

func fold(s string) string { return strings.ToLower(s) }

// AddAttributeType registers an attribute type under its OID and all of
// its names (case-folded).
func (s *Schema) AddAttributeType(at AttributeType) {
	key := at.OID.String()
	cp := at
	s.attrsByOID[key] = &cp
	for _, n := range at.Names {
		s.attrByName[fold(n)] = at.OID
	}
}

// AddObjectClass registers an object class under its OID and all of its
// names (case-folded).
func (s *Schema) AddObjectClass(oc ObjectClass) {
	key := oc.OID.String()
	cp := oc
	s.ocsByOID[key] = &cp
	for _, n := range oc.Names {
		s.ocByName[fold(n)] = oc.OID
	}
}

// AttributeOID resolves an attribute name or alias to its OID.
func (s *Schema) AttributeOID(name string) (oid.OID, bool) {
	o, ok := s.attrByName[fold(name)]
	return o, ok
}

// AttributeByOID returns the attribute-type definition for an OID.
func (s *Schema) AttributeByOID(o oid.OID) (*AttributeType, bool) {
	at, ok := s.attrsByOID[o.String()]
	return at, ok
}

// ObjectClassOID resolves an object-class name or alias to its OID.
func (s *Schema) ObjectClassOID(name string) (oid.OID, bool) {
	o, ok := s.ocByName[fold(name)]
	return o, ok
}

// ObjectClassByOID returns the object-class definition for an OID.
func (s *Schema) ObjectClassByOID(o oid.OID) (*ObjectClass, bool) {
	oc, ok := s.ocsByOID[o.String()]
	return oc, ok
}

// ObjectClassByName resolves and looks up an object-class by name in one
// step.
func (s *Schema) ObjectClassByName(name string) (*ObjectClass, bool) {
	o, ok := s.ObjectClassOID(name)
	if !ok {
		return nil, false
	}
	return s.ObjectClassByOID(o)
}

// EquateAttrs reports whether two attribute names denote the same
// attribute: true iff the schema maps them to the same OID. This is how
// aliases (e.g. "cn" and "commonName") compare equal even though their
// spellings differ.
func (s *Schema) EquateAttrs(a, b string) bool {
	oa, aok := s.AttributeOID(a)
	ob, bok := s.AttributeOID(b)
	if !aok || !bok {
		return fold(a) == fold(b)
	}
	return oa.Equal(ob)
}

// SupClosure computes the transitive SUP closure of an object class,
// including the class itself, as a set of OIDs.
func (s *Schema) SupClosure(oc *ObjectClass) []oid.OID {
	seen := make(map[string]bool)
	var out []oid.OID

	var walk func(*ObjectClass)
	walk = func(c *ObjectClass) {
		key := c.OID.String()
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, c.OID)
		for _, supName := range c.Sup {
			if sup, ok := s.ObjectClassByName(supName); ok {
				walk(sup)
			}
		}
	}
	walk(oc)
	return out
}

// RawSchemaParser is the external collaborator that turns a server's raw
// schema attributes (objectClasses/attributeTypes strings, RFC 4512) into
// a Schema. The grammar itself is out of scope for this toolkit; this
// interface is the seam production code plugs a real parser into.
type RawSchemaParser interface {
	Parse(attrs map[string][]string) (*Schema, error)
}
