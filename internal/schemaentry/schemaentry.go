// Package schemaentry binds an entry.Entry to a schema: it validates
// object-class and attribute legality, tracks which attributes are
// required/allowed/present/missing, and completes the object-class cover
// under the optimistic or pessimistic flavor.
package schemaentry

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/smarzola/ldaptoolkit/internal/entry"
	"github.com/smarzola/ldaptoolkit/internal/oid"
	"github.com/smarzola/ldaptoolkit/internal/schema"
)

// Flavor selects schema-check strictness.
type Flavor int

const (
	// Optimistic silently drops unknown/disallowed attributes from the
	// schema view; they remain on the underlying raw entry.
	Optimistic Flavor = iota
	// Pessimistic rejects unknown object classes and disallowed
	// attributes outright.
	Pessimistic
)

var (
	ErrInvalidObjectClass  = errors.New("invalid object class")
	ErrInvalidAttribute    = errors.New("attribute not permitted")
	ErrSingleValue         = errors.New("attribute is single-valued")
	ErrObjectclassRequired = errors.New("no object class attribute present")
)

const objectClassAttr = "objectClass"

// Entry wraps an entry.Entry with a bound schema reference and cached OID
// sets, recomputed on construction and after every mutation.
type Entry struct {
	*entry.Entry
	schema *schema.Schema
	flavor Flavor

	must, may, present, missing map[string]bool // OID string -> true
	disallowed                  []string         // attribute names present but not covered by must/may (objectClass excepted)
}

// FromEntry binds e to sch under flavor and computes the initial cover.
// Under Pessimistic, an unknown object class or a disallowed attribute is
// returned as an error immediately.
func FromEntry(sch *schema.Schema, flavor Flavor, e *entry.Entry) (*Entry, error) {
	se := &Entry{Entry: e, schema: sch, flavor: flavor}
	if err := se.recompute(); err != nil {
		return nil, err
	}
	return se, nil
}

// Add adds values to attr, enforcing SINGLE-VALUE and recomputing the
// cover.
func (se *Entry) Add(attr string, vs []string) error {
	se.Entry.Add(attr, vs)
	if err := se.checkSingleValue(attr); err != nil {
		return err
	}
	return se.recompute()
}

// Replace overwrites attr's values, enforcing SINGLE-VALUE and
// recomputing the cover.
func (se *Entry) Replace(attr string, vs []string) error {
	se.Entry.Replace(attr, vs)
	if err := se.checkSingleValue(attr); err != nil {
		return err
	}
	return se.recompute()
}

// Delete removes values from attr and recomputes the cover.
func (se *Entry) Delete(attr string, vs []string) error {
	se.Entry.Delete(attr, vs)
	return se.recompute()
}

// Modify applies each record in order via Add/Delete/Replace.
func (se *Entry) Modify(records []entry.Record) error {
	for _, r := range records {
		var err error
		switch r.Op {
		case entry.OpAdd:
			err = se.Add(r.Attr, r.Values)
		case entry.OpDelete:
			err = se.Delete(r.Attr, r.Values)
		case entry.OpReplace:
			err = se.Replace(r.Attr, r.Values)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (se *Entry) checkSingleValue(attr string) error {
	o, ok := se.schema.AttributeOID(attr)
	if !ok {
		return nil
	}
	at, ok := se.schema.AttributeByOID(o)
	if !ok || !at.SingleValue {
		return nil
	}
	if len(se.Entry.GetValue(attr)) > 1 {
		return fmt.Errorf("%w: %s", ErrSingleValue, attr)
	}
	return nil
}

// recompute rebuilds must/may/present/missing from the entry's current
// objectClass values and attribute set.
func (se *Entry) recompute() error {
	ocNames := se.Entry.GetValue(objectClassAttr)

	var classes []*schema.ObjectClass
	var unknownClasses []string
	for _, name := range ocNames {
		if c, ok := se.schema.ObjectClassByName(name); ok {
			classes = append(classes, c)
		} else {
			unknownClasses = append(unknownClasses, name)
		}
	}

	must := make(map[string]bool)
	may := make(map[string]bool)
	for _, c := range classes {
		for _, ocOID := range se.schema.SupClosure(c) {
			def, ok := se.schema.ObjectClassByOID(ocOID)
			if !ok {
				continue
			}
			for _, m := range def.Must {
				must[m.String()] = true
			}
			for _, m := range def.May {
				may[m.String()] = true
			}
		}
	}

	present := make(map[string]bool)
	var disallowed []string
	for _, attrName := range se.Entry.Attributes() {
		if o, ok := se.schema.AttributeOID(attrName); ok && (must[o.String()] || may[o.String()]) {
			present[o.String()] = true
			continue
		}
		if se.schema.EquateAttrs(attrName, objectClassAttr) {
			// objectClass defines the cover rather than being covered by it.
			continue
		}
		disallowed = append(disallowed, attrName)
	}

	missing := make(map[string]bool)
	for m := range must {
		if !present[m] {
			missing[m] = true
		}
	}

	se.must, se.may, se.present, se.missing = must, may, present, missing
	se.disallowed = disallowed

	if se.flavor == Pessimistic {
		var merr *multierror.Error
		for _, name := range unknownClasses {
			merr = multierror.Append(merr, fmt.Errorf("%w: %s", ErrInvalidObjectClass, name))
		}
		for _, name := range disallowed {
			merr = multierror.Append(merr, fmt.Errorf("%w: %s", ErrInvalidAttribute, name))
		}
		if merr != nil {
			return merr
		}
	}
	return nil
}

func (se *Entry) nameOf(o oid.OID) string {
	if at, ok := se.schema.AttributeByOID(o); ok && len(at.Names) > 0 {
		return at.Names[0]
	}
	return o.String()
}

// IsAllowed reports whether attr is covered by the entry's current
// object-class cover (must or may).
func (se *Entry) IsAllowed(attr string) bool {
	o, ok := se.schema.AttributeOID(attr)
	if !ok {
		return false
	}
	return se.must[o.String()] || se.may[o.String()]
}

// IsMissing reports whether attr is required and absent.
func (se *Entry) IsMissing(attr string) bool {
	o, ok := se.schema.AttributeOID(attr)
	if !ok {
		return false
	}
	return se.missing[o.String()]
}

// ListAllowed returns the canonical names of must+may attributes.
func (se *Entry) ListAllowed() []string {
	var names []string
	for k := range se.must {
		names = append(names, se.nameOf(oid.MustParse(k)))
	}
	for k := range se.may {
		names = append(names, se.nameOf(oid.MustParse(k)))
	}
	return names
}

// ListMissing returns the canonical names of missing required attributes.
func (se *Entry) ListMissing() []string {
	var names []string
	for k := range se.missing {
		names = append(names, se.nameOf(oid.MustParse(k)))
	}
	return names
}

// ListPresent returns the canonical names of present, allowed attributes
// (the schema-checked view — disallowed attributes are excluded here even
// under Optimistic, though they remain on the underlying raw entry).
func (se *Entry) ListPresent() []string {
	var names []string
	for k := range se.present {
		names = append(names, se.nameOf(oid.MustParse(k)))
	}
	return names
}

// ListDisallowed returns attribute names present on the entry but not
// covered by must/may for its current object classes, including names the
// schema does not know. The objectClass attribute itself is never listed.
func (se *Entry) ListDisallowed() []string {
	return append([]string(nil), se.disallowed...)
}

// RequireObjectClass returns ErrObjectclassRequired if the entry carries
// no objectClass value. Call before a commit: a directory server rejects
// an add with no object class, and this catches it locally first.
func (se *Entry) RequireObjectClass() error {
	if len(se.Entry.GetValue(objectClassAttr)) == 0 {
		return ErrObjectclassRequired
	}
	return nil
}
