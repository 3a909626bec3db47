// Package entry implements the in-memory directory-entry object model:
// a present attribute map plus an ordered change log describing the
// pending modifications needed to reconcile the entry with its server
// state. Local operations never contact a server and never validate
// attribute names — that is the job of package schemaentry.
package entry

import "strings"

// ChangeType tags the kind of server operation an entry represents.
type ChangeType int

const (
	ChangeAdd ChangeType = iota
	ChangeModify
	ChangeDelete
	ChangeModRDN
	ChangeModDN
)

// Op is the kind of a single change-log record.
type Op int

const (
	OpAdd Op = iota
	OpDelete
	OpReplace
)

// Record is one entry in the change log: an operation, the attribute it
// applies to, and the values involved.
type Record struct {
	Op     Op
	Attr   string
	Values []string
}

// Entry is one in-memory directory object.
type Entry struct {
	dn         string
	changeType ChangeType
	present    map[string][]string // folded name -> values
	display    map[string]string   // folded name -> original-case name
	log        []Record

	// ModRDN/ModDN state, set by SetModRDN.
	NewRDN       string
	DeleteOldRDN bool
	NewSuperior  string
}

// New creates a fresh entry with the given DN, change-type ADD, and no
// attributes.
func New(dn string) *Entry {
	return &Entry{
		dn:         dn,
		changeType: ChangeAdd,
		present:    make(map[string][]string),
		display:    make(map[string]string),
	}
}

func fold(attr string) string {
	return strings.ToLower(attr)
}

// DN returns the entry's distinguished name.
func (e *Entry) DN() string { return e.dn }

// SetDN sets the entry's distinguished name.
func (e *Entry) SetDN(dn string) { e.dn = dn }

// ChangeType returns the entry's change-type tag.
func (e *Entry) ChangeType() ChangeType { return e.changeType }

// SetChangeType sets the entry's change-type tag.
func (e *Entry) SetChangeType(ct ChangeType) { e.changeType = ct }

// SetModRDN records a pending rename, for change-type MODRDN/MODDN.
func (e *Entry) SetModRDN(newRDN string, deleteOld bool, newSuperior string) {
	e.NewRDN = newRDN
	e.DeleteOldRDN = deleteOld
	e.NewSuperior = newSuperior
}

// Attributes lists the attribute names currently present, in their
// original case as first seen.
func (e *Entry) Attributes() []string {
	names := make([]string, 0, len(e.present))
	for k := range e.present {
		names = append(names, e.display[k])
	}
	return names
}

// Exists reports whether attr has at least one value.
func (e *Entry) Exists(attr string) bool {
	_, ok := e.present[fold(attr)]
	return ok
}

// GetValue returns the attribute's value set (possibly empty).
func (e *Entry) GetValue(attr string) []string {
	return e.GetValues(attr)
}

// GetValues implements the Attributed capability used by Diff.
func (e *Entry) GetValues(attr string) []string {
	vals := e.present[fold(attr)]
	out := make([]string, len(vals))
	copy(out, vals)
	return out
}

func (e *Entry) setValues(attr string, values []string) {
	key := fold(attr)
	if len(values) == 0 {
		delete(e.present, key)
		delete(e.display, key)
		return
	}
	e.present[key] = append([]string(nil), values...)
	if _, ok := e.display[key]; !ok {
		e.display[key] = attr
	}
}

func appendUnique(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, v := range existing {
		seen[v] = true
	}
	out := append([]string(nil), existing...)
	for _, v := range add {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func removeValues(existing, remove []string) []string {
	drop := make(map[string]bool, len(remove))
	for _, v := range remove {
		drop[v] = true
	}
	out := make([]string, 0, len(existing))
	for _, v := range existing {
		if !drop[v] {
			out = append(out, v)
		}
	}
	return out
}

func (e *Entry) appendLog(op Op, attr string, values []string) {
	if e.changeType == ChangeDelete {
		return
	}
	e.log = append(e.log, Record{Op: op, Attr: attr, Values: append([]string(nil), values...)})
}

// Add unions vs into attr's value set, creating the attribute if absent.
// Adding an empty set to an absent attribute is a no-op (LDAP leaves this
// unspecified; see spec).
func (e *Entry) Add(attr string, vs []string) {
	key := fold(attr)
	existing, had := e.present[key]
	if !had && len(vs) == 0 {
		return
	}
	e.setValues(attr, appendUnique(existing, vs))
	e.appendLog(OpAdd, attr, vs)
}

// Delete removes listed values from attr, or the whole attribute when vs
// is empty. The change log always records the delete as issued, even
// when it empties the attribute entirely.
func (e *Entry) Delete(attr string, vs []string) {
	key := fold(attr)
	if len(vs) == 0 {
		delete(e.present, key)
		delete(e.display, key)
		e.appendLog(OpDelete, attr, nil)
		return
	}
	remaining := removeValues(e.present[key], vs)
	e.setValues(attr, remaining)
	e.appendLog(OpDelete, attr, vs)
}

// Replace overwrites attr's value set with vs, deleting the attribute
// when vs is empty.
func (e *Entry) Replace(attr string, vs []string) {
	e.setValues(attr, vs)
	e.appendLog(OpReplace, attr, vs)
}

// Modify applies each record in order, equivalent to the corresponding
// primitive calls.
func (e *Entry) Modify(records []Record) {
	for _, r := range records {
		switch r.Op {
		case OpAdd:
			e.Add(r.Attr, r.Values)
		case OpDelete:
			e.Delete(r.Attr, r.Values)
		case OpReplace:
			e.Replace(r.Attr, r.Values)
		}
	}
}

// Changes returns the change log, in the order operations were issued.
// The log is never compacted: the server applies mods sequentially and
// later ones may depend on the visible state between them.
func (e *Entry) Changes() []Record {
	out := make([]Record, len(e.log))
	copy(out, e.log)
	return out
}

// FlushChanges empties the change log without touching the present map.
// Call after a successful commit, or to treat the entry as freshly read.
func (e *Entry) FlushChanges() {
	e.log = nil
}

// Clone returns a deep copy with an empty change log, useful as the
// "pre-change" snapshot for replay tests.
func (e *Entry) Clone() *Entry {
	c := New(e.dn)
	c.changeType = e.changeType
	for k, v := range e.present {
		c.present[k] = append([]string(nil), v...)
	}
	for k, v := range e.display {
		c.display[k] = v
	}
	return c
}
