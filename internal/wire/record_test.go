package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smarzola/ldaptoolkit/internal/entry"
)

func TestRoundtripThroughRecord(t *testing.T) {
	e := entry.New("cn=a,dc=x")
	e.Add("cn", []string{"a"})
	e.Add("mail", []string{"a@x", "b@x"})

	rec := ToRecord(e)
	back := FromRecord(rec)

	assert.Equal(t, e.DN(), back.DN())
	assert.ElementsMatch(t, e.GetValue("cn"), back.GetValue("cn"))
	assert.ElementsMatch(t, e.GetValue("mail"), back.GetValue("mail"))
	assert.Empty(t, back.Changes())
}

func TestFromReferralSetsSentinelDNAndRefAttribute(t *testing.T) {
	e := FromReferral([]string{"ldap://a.example", "ldap://b.example"})
	assert.Equal(t, ReferralDN, e.DN())
	assert.ElementsMatch(t, []string{"ldap://a.example", "ldap://b.example"}, e.GetValue(ReferralAttr))
}
