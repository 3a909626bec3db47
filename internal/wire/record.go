// Package wire is the sole contract this toolkit keeps with listener-side
// LDAP server implementations: converting between the in-memory
// entry.Entry model and the BER wire-record representation of a search
// result entry. Everything else about building a server — request
// routing, the TCP accept loop — is out of scope.
package wire

import (
	"github.com/lor00x/goldap/message"

	"github.com/smarzola/ldaptoolkit/internal/entry"
)

// ReferralDN is the sentinel DN used for an entry synthesized from a
// referral response. Referrals are never followed automatically, but are
// still represented so a caller can inspect and act on them.
const ReferralDN = "referral"

// ReferralAttr holds the redirect URLs on a referral-derived entry.
const ReferralAttr = "ref"

// ToRecord exports e's present attribute map as a wire search-result
// entry. The change log is ignored — only present state is ever sent to
// a listener-side consumer.
func ToRecord(e *entry.Entry) message.SearchResultEntry {
	rec := message.SearchResultEntry{}
	rec.SetObjectName(e.DN())

	for _, name := range e.Attributes() {
		values := e.GetValue(name)
		wireValues := make([]message.AttributeValue, len(values))
		for i, v := range values {
			wireValues[i] = message.AttributeValue(v)
		}
		rec.AddAttribute(message.AttributeDescription(name), wireValues...)
	}
	return rec
}

// FromRecord constructs an entry from a wire search-result entry.
func FromRecord(rec message.SearchResultEntry) *entry.Entry {
	e := entry.New(string(rec.ObjectName()))
	e.SetChangeType(entry.ChangeModify) // a read entry carries no pending add
	e.FlushChanges()

	for _, attr := range rec.Attributes() {
		name := string(attr.Type_())
		vals := attr.Vals()
		values := make([]string, len(vals))
		for i, v := range vals {
			values[i] = string(v)
		}
		e.Add(name, values)
	}
	e.FlushChanges()
	return e
}

// FromReferral builds an entry representing a referral: a sentinel DN and
// a "ref" attribute holding the redirect URLs. The core never follows
// referrals; this is purely for caller inspection.
func FromReferral(urls []string) *entry.Entry {
	e := entry.New(ReferralDN)
	e.Add(ReferralAttr, urls)
	e.FlushChanges()
	return e
}
