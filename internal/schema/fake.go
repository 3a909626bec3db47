package schema

import "github.com/smarzola/ldaptoolkit/internal/oid"

// FakeParser builds a Schema from literal Go data instead of RFC 4512
// grammar. Production callers supply a real parser (out of scope here);
// tests use FakeParser so the suite never needs one.
type FakeParser struct {
	Schema *Schema
}

// Parse ignores attrs and returns the schema it was built with.
func (f FakeParser) Parse(attrs map[string][]string) (*Schema, error) {
	return f.Schema, nil
}

// InetOrgPersonFixture returns a small schema covering top, person,
// organizationalPerson and inetOrgPerson, plus a uid/userID alias pair —
// enough to exercise completion and aliasing in tests without a real
// schema string.
func InetOrgPersonFixture() *Schema {
	s := New()

	cn := oid.MustParse("2.5.4.3")
	sn := oid.MustParse("2.5.4.4")
	mail := oid.MustParse("0.9.2342.19200300.100.1.3")
	uid := oid.MustParse("0.9.2342.19200300.100.1.1")
	userPassword := oid.MustParse("2.5.4.35")
	objectClassAttr := oid.MustParse("2.5.4.0")

	s.AddAttributeType(AttributeType{OID: cn, Names: []string{"cn", "commonName"}})
	s.AddAttributeType(AttributeType{OID: sn, Names: []string{"sn", "surname"}})
	s.AddAttributeType(AttributeType{OID: mail, Names: []string{"mail"}})
	s.AddAttributeType(AttributeType{OID: uid, Names: []string{"uid", "userID"}})
	s.AddAttributeType(AttributeType{OID: userPassword, Names: []string{"userPassword"}, SingleValue: true})
	s.AddAttributeType(AttributeType{OID: objectClassAttr, Names: []string{"objectClass"}})

	top := oid.MustParse("2.5.6.0")
	person := oid.MustParse("2.5.6.6")
	orgPerson := oid.MustParse("2.5.6.7")
	inetOrgPerson := oid.MustParse("2.16.840.1.113730.3.2.2")

	s.AddObjectClass(ObjectClass{OID: top, Names: []string{"top"}, Kind: Abstract})
	s.AddObjectClass(ObjectClass{
		OID: person, Names: []string{"person"}, Sup: []string{"top"}, Kind: Structural,
		Must: []oid.OID{cn, sn},
		May:  []oid.OID{userPassword},
	})
	s.AddObjectClass(ObjectClass{
		OID: orgPerson, Names: []string{"organizationalPerson"}, Sup: []string{"person"}, Kind: Structural,
	})
	s.AddObjectClass(ObjectClass{
		OID: inetOrgPerson, Names: []string{"inetOrgPerson"}, Sup: []string{"organizationalPerson"}, Kind: Structural,
		May: []oid.OID{mail, uid},
	})

	return s
}
