package conn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarzola/ldaptoolkit/internal/entry"
)

func testEntry() *entry.Entry {
	e := entry.New("uid=jdoe,ou=people,dc=example,dc=com")
	e.Add("objectClass", []string{"inetOrgPerson"})
	e.Add("sn", []string{"Doe"})
	return e
}

// fakeResolver satisfies Resolver without touching real DNS.
type fakeResolver struct {
	addrs map[string][]string
}

func (f fakeResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	if addrs, ok := f.addrs[host]; ok {
		return addrs, nil
	}
	return nil, errors.New("no such host")
}

// fakeConn is a minimal ldapConn double.
type fakeConn struct {
	bindErr   error
	addErr    error
	modifyErr error
	delErr    error
	modDNErr  error
	searchFn  func(*ldap.SearchRequest) (*ldap.SearchResult, error)
	closed    bool
}

func (f *fakeConn) Bind(dn, password string) error            { return f.bindErr }
func (f *fakeConn) Add(req *ldap.AddRequest) error             { return f.addErr }
func (f *fakeConn) Modify(req *ldap.ModifyRequest) error       { return f.modifyErr }
func (f *fakeConn) Del(req *ldap.DelRequest) error             { return f.delErr }
func (f *fakeConn) ModifyDN(req *ldap.ModifyDNRequest) error   { return f.modDNErr }
func (f *fakeConn) Close()                                    { f.closed = true }
func (f *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	if f.searchFn != nil {
		return f.searchFn(req)
	}
	return &ldap.SearchResult{}, nil
}

// fakeDialer hands out connections (or failures) by endpoint index, in
// the order Dial is called.
type fakeDialer struct {
	attempts []func() (ldapConn, error)
	calls    int
}

func (d *fakeDialer) Dial(ep Endpoint, timeout time.Duration) (ldapConn, error) {
	if d.calls >= len(d.attempts) {
		return nil, LDAPFailure{Code: CodeServerDown, Message: "no more fake endpoints"}
	}
	f := d.attempts[d.calls]
	d.calls++
	return f()
}

func twoEndpointPool() []Endpoint {
	return []Endpoint{
		{Scheme: "ldap", Host: "10.0.0.1", Port: 389},
		{Scheme: "ldap", Host: "10.0.0.2", Port: 389},
	}
}

// Given a pool where the first endpoint is unreachable, bind succeeds
// against the second and subsequent operations use it.
func TestBindFailsOverToSecondEndpoint(t *testing.T) {
	good := &fakeConn{}
	dialer := &fakeDialer{attempts: []func() (ldapConn, error){
		func() (ldapConn, error) { return nil, LDAPFailure{Code: CodeServerDown, Message: "unreachable"} },
		func() (ldapConn, error) { return good, nil },
	}}

	m := NewManager(twoEndpointPool(), time.Second, 3, WithDialer(dialer))
	err := m.Bind("cn=admin,dc=x", "secret", Simple)
	require.NoError(t, err)
	assert.Equal(t, 2, dialer.calls)
}

func TestPoolExhaustionSurfacesServerDown(t *testing.T) {
	dialer := &fakeDialer{attempts: []func() (ldapConn, error){
		func() (ldapConn, error) { return nil, LDAPFailure{Code: CodeServerDown, Message: "down"} },
		func() (ldapConn, error) { return nil, LDAPFailure{Code: CodeServerDown, Message: "down"} },
	}}

	m := NewManager(twoEndpointPool(), time.Second, 3, WithDialer(dialer))
	err := m.Bind("cn=admin,dc=x", "secret", Simple)
	require.Error(t, err)
	var failure LDAPFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, CodeServerDown, failure.Code)
}

// A mid-operation transient failure causes exactly one reconnect and the
// operation completes without the caller observing it.
func TestAddReconnectsOnceOnTransientFailure(t *testing.T) {
	flaky := &fakeConn{addErr: LDAPFailure{Code: CodeServerDown, Message: "connection reset"}}
	recovered := &fakeConn{}

	dialer := &fakeDialer{attempts: []func() (ldapConn, error){
		func() (ldapConn, error) { return flaky, nil },
		func() (ldapConn, error) { return recovered, nil },
	}}

	m := NewManager([]Endpoint{{Scheme: "ldap", Host: "10.0.0.1", Port: 389}, {Scheme: "ldap", Host: "10.0.0.2", Port: 389}}, time.Second, 3, WithDialer(dialer))

	e := testEntry()
	err := m.Add(e)
	require.NoError(t, err)
	assert.Equal(t, 2, dialer.calls)
	assert.True(t, flaky.closed)
}

func TestNonTransientErrorNeverRetried(t *testing.T) {
	conn := &fakeConn{addErr: &ldap.Error{ResultCode: ldap.LDAPResultConstraintViolation, Err: errors.New("constraint violated")}}
	dialer := &fakeDialer{attempts: []func() (ldapConn, error){
		func() (ldapConn, error) { return conn, nil },
	}}

	m := NewManager(twoEndpointPool(), time.Second, 3, WithDialer(dialer))
	err := m.Add(testEntry())
	require.Error(t, err)
	assert.Equal(t, 1, dialer.calls)

	var failure LDAPFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, Code(ldap.LDAPResultConstraintViolation), failure.Code)
}

func TestModRDNRejectsNewSuperiorUnderProtocolVersion2(t *testing.T) {
	m := NewManager(twoEndpointPool(), time.Second, 2, WithDialer(&fakeDialer{}))
	err := m.ModRDN("cn=a,dc=x", "cn=b", true, "dc=y")
	require.Error(t, err)
	var failure LDAPFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, CodeProtocolError, failure.Code)
}

func TestSearchAsyncRefusesSecondConcurrentStream(t *testing.T) {
	fc := &fakeConn{searchFn: func(*ldap.SearchRequest) (*ldap.SearchResult, error) {
		return &ldap.SearchResult{}, nil
	}}
	dialer := &fakeDialer{attempts: []func() (ldapConn, error){
		func() (ldapConn, error) { return fc, nil },
	}}
	m := NewManager(twoEndpointPool(), time.Second, 3, WithDialer(dialer))

	_, err := m.SearchAsync("dc=x", ScopeSubtree, "(objectClass=*)", nil, false, 10)
	require.NoError(t, err)

	_, err = m.SearchAsync("dc=x", ScopeSubtree, "(objectClass=*)", nil, false, 10)
	require.Error(t, err)
	var failure LDAPFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, CodeOperationsError, failure.Code)
}

func TestSearchAsyncAbandonFreesManager(t *testing.T) {
	fc := &fakeConn{searchFn: func(*ldap.SearchRequest) (*ldap.SearchResult, error) {
		return &ldap.SearchResult{}, nil
	}}
	dialer := &fakeDialer{attempts: []func() (ldapConn, error){
		func() (ldapConn, error) { return fc, nil },
	}}
	m := NewManager(twoEndpointPool(), time.Second, 3, WithDialer(dialer))

	stream, err := m.SearchAsync("dc=x", ScopeSubtree, "(objectClass=*)", nil, false, 10)
	require.NoError(t, err)
	stream.Abandon()

	_, err = m.SearchAsync("dc=x", ScopeSubtree, "(objectClass=*)", nil, false, 10)
	assert.NoError(t, err)
}

func TestUpdateEntryDispatchesAddForPendingAddEntry(t *testing.T) {
	fc := &fakeConn{}
	dialer := &fakeDialer{attempts: []func() (ldapConn, error){
		func() (ldapConn, error) { return fc, nil },
	}}
	m := NewManager(twoEndpointPool(), time.Second, 3, WithDialer(dialer))

	e := testEntry()
	err := m.UpdateEntry(e)
	assert.NoError(t, err)
}

func TestResolvePoolConcatenatesInInputOrder(t *testing.T) {
	resolver := fakeResolver{addrs: map[string][]string{
		"a.example.com": {"10.0.0.1"},
		"b.example.com": {"10.0.0.2", "10.0.0.3"},
	}}

	pool, err := ResolvePool(context.Background(), resolver, []string{"ldap://a.example.com", "ldaps://b.example.com:1636"})
	require.NoError(t, err)
	require.Len(t, pool, 3)
	assert.Equal(t, Endpoint{Scheme: "ldap", Host: "10.0.0.1", Port: 389}, pool[0])
	assert.Equal(t, Endpoint{Scheme: "ldaps", Host: "10.0.0.2", Port: 1636}, pool[1])
	assert.Equal(t, Endpoint{Scheme: "ldaps", Host: "10.0.0.3", Port: 1636}, pool[2])
}

func TestResolvePoolRejectsUnsupportedScheme(t *testing.T) {
	resolver := fakeResolver{addrs: map[string][]string{"a.example.com": {"10.0.0.1"}}}
	_, err := ResolvePool(context.Background(), resolver, []string{"http://a.example.com"})
	assert.Error(t, err)
}
