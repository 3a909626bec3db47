package entry

import "sort"

// Diff computes Diff(e, other): the records that turn other's present
// state into e's present state.
func (e *Entry) Diff(other Attributed) []Record {
	return Diff(e, other)
}

// Attributed is the abstract capability Diff needs: enumerate attribute
// names and read an attribute's value set. Both *Entry and
// *schemaentry.Entry satisfy it, so diffing is a free function rather
// than a method tied to one concrete type (see design notes).
type Attributed interface {
	Attributes() []string
	GetValues(attr string) []string
}

func valuesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	left := append([]string(nil), a...)
	right := append([]string(nil), b...)
	sort.Strings(left)
	sort.Strings(right)
	for i := range left {
		if left[i] != right[i] {
			return false
		}
	}
	return true
}

// Diff returns the minimal record list to transform other's present
// state into target's present state: a full-value ADD/DELETE when an
// attribute is missing on one side, a REPLACE when value sets differ.
// Attribute identity compares by exact case-folded name only; aliases of
// one attribute (such as uid and userID) are diffed as distinct
// attributes, and no OID-aware variant exists in this module.
func Diff(target, other Attributed) []Record {
	targetAttrs := make(map[string][]string)
	for _, name := range target.Attributes() {
		targetAttrs[fold(name)] = target.GetValues(name)
	}
	otherAttrs := make(map[string][]string)
	for _, name := range other.Attributes() {
		otherAttrs[fold(name)] = other.GetValues(name)
	}

	names := make([]string, 0, len(targetAttrs)+len(otherAttrs))
	seen := make(map[string]bool)
	for _, n := range target.Attributes() {
		k := fold(n)
		if !seen[k] {
			seen[k] = true
			names = append(names, n)
		}
	}
	for _, n := range other.Attributes() {
		k := fold(n)
		if !seen[k] {
			seen[k] = true
			names = append(names, n)
		}
	}
	sort.Strings(names)

	var records []Record
	for _, name := range names {
		key := fold(name)
		tv, tok := targetAttrs[key]
		ov, ook := otherAttrs[key]

		switch {
		case tok && !ook:
			records = append(records, Record{Op: OpAdd, Attr: name, Values: tv})
		case !tok && ook:
			records = append(records, Record{Op: OpDelete, Attr: name})
		case tok && ook && !valuesEqual(tv, ov):
			records = append(records, Record{Op: OpReplace, Attr: name, Values: tv})
		}
	}
	return records
}
