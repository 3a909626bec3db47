// Package presets supplies ready-made account.Service and
// account.Generator values for the object classes the toolkit ships
// fixtures for: inetOrgPerson, groupOfNames and organizationalUnit.
package presets

import (
	"fmt"
	"strings"
	"time"

	"github.com/smarzola/ldaptoolkit/internal/account"
	"github.com/smarzola/ldaptoolkit/internal/entry"
	"github.com/smarzola/ldaptoolkit/pkg/config"
)

// PersonService stamps the inetOrgPerson object class. Combine it with
// AddGenerate("cn")/AddGenerate("sn") or plain Entry.Add calls for the
// rest of the person's attributes.
func PersonService() account.Service {
	return account.Service{
		Name:   "person",
		Static: []account.StaticAttr{{Attr: "objectClass", Values: []string{"inetOrgPerson"}}},
	}
}

// GroupOfNamesService stamps the groupOfNames object class.
func GroupOfNamesService() account.Service {
	return account.Service{
		Name:   "groupOfNames",
		Static: []account.StaticAttr{{Attr: "objectClass", Values: []string{"groupOfNames"}}},
	}
}

// OrganizationalUnitService stamps the organizationalUnit object class.
func OrganizationalUnitService() account.Service {
	return account.Service{
		Name:   "organizationalUnit",
		Static: []account.StaticAttr{{Attr: "objectClass", Values: []string{"organizationalUnit"}}},
	}
}

// ParentDNComponents splits baseDN into its RDN components and drops the
// leading one, giving the RDN components of baseDN's parent. Used to
// derive an organizationalUnit's superior DN when only its child's base
// DN is configured (e.g. "ou=people,dc=example,dc=com" -> the
// "dc=example,dc=com" an OrganizationalUnitService entry would live
// under).
func ParentDNComponents(baseDN string) []string {
	components := config.ParseBaseDNComponents(baseDN)
	if len(components) == 0 {
		return components
	}
	return components[1:]
}

// ParentDN joins ParentDNComponents back into a DN string.
func ParentDN(baseDN string) string {
	return strings.Join(ParentDNComponents(baseDN), ",")
}

// PasswordGenerator hashes userPassword in place: it reads the attribute's
// current value (plaintext, or an already-scheme-prefixed hash) and
// replaces it with the argon2id-hashed form hasher would accept at bind
// time (RFC 3112 scheme prefix).
func PasswordGenerator(hasher *PasswordHasher) account.Generator {
	return account.Generator{
		Name:     "g_userPassword",
		Produces: "userPassword",
		Required: []string{"userPassword"},
		Fn: func(e entry.Attributed) ([]string, error) {
			vs := e.GetValues("userPassword")
			if len(vs) == 0 {
				return nil, fmt.Errorf("userPassword has no value to hash")
			}
			hashed, err := hasher.ProcessPassword(vs[0])
			if err != nil {
				return nil, err
			}
			return []string{hashed}, nil
		},
	}
}

// CreateTimestampGenerator stamps createTimestamp with the current time
// in LDAP Generalized Time format (RFC 4512), mirroring the operational
// attributes a directory server adds on entry creation.
func CreateTimestampGenerator(now func() time.Time) account.Generator {
	return account.Generator{
		Name:     "g_createTimestamp",
		Produces: "createTimestamp",
		Fn: func(e entry.Attributed) ([]string, error) {
			return []string{formatGeneralizedTime(now())}, nil
		},
	}
}

func formatGeneralizedTime(t time.Time) string {
	return t.UTC().Format("20060102150405Z")
}
