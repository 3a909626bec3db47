package conn

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"

	"github.com/smarzola/ldaptoolkit/internal/entry"
	"github.com/smarzola/ldaptoolkit/internal/schema"
)

// BindMethod selects a bind mechanism. Only Simple is implemented; a
// SASL mechanism plugs in later without touching the retry/reconnect
// state machine.
type BindMethod int

const (
	Simple BindMethod = iota
)

// Scope is an LDAP search scope.
type Scope int

const (
	ScopeBase Scope = iota
	ScopeOneLevel
	ScopeSubtree
)

func (s Scope) toLdap() int {
	switch s {
	case ScopeOneLevel:
		return ldap.ScopeSingleLevel
	case ScopeSubtree:
		return ldap.ScopeWholeSubtree
	default:
		return ldap.ScopeBaseObject
	}
}

// ldapConn is the seam the connection manager dials through; *ldap.Conn
// satisfies it in production, a fake satisfies it in tests.
type ldapConn interface {
	Bind(username, password string) error
	Add(req *ldap.AddRequest) error
	Modify(req *ldap.ModifyRequest) error
	Del(req *ldap.DelRequest) error
	ModifyDN(req *ldap.ModifyDNRequest) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close()
}

// Dialer opens a transport to an endpoint.
type Dialer interface {
	Dial(ep Endpoint, timeout time.Duration) (ldapConn, error)
}

type realDialer struct{}

func (realDialer) Dial(ep Endpoint, timeout time.Duration) (ldapConn, error) {
	return ldap.DialURL(ep.URL(), ldap.DialWithDialer(&net.Dialer{Timeout: timeout}))
}

type boundState struct {
	dn       string
	password string
	method   BindMethod
	bound    bool
}

// SchemaCache is the optional durable seam internal/schemacache
// implements; nil means schema lookups are memoized in-memory only for
// the connection's life.
type SchemaCache interface {
	Load(serverURL string) (map[string][]string, bool, error)
	Store(serverURL string, raw map[string][]string) error
}

// Manager is the connection manager: a single logical session over a
// pool of physical endpoints. It is single-threaded and synchronous;
// callers serialize access externally.
type Manager struct {
	pool      []Endpoint
	poolIndex int
	dialer    Dialer

	connectTimeout  time.Duration
	protocolVersion int

	conn  ldapConn
	bound boundState

	schema       *schema.Schema
	schemaCache  SchemaCache
	primaryURL   string

	busy      bool
	sessionID string
	log       *slog.Logger
}

// NewManager builds a Manager over an already-resolved endpoint pool. When
// a cache is configured via WithSchemaCache, the primaryURL passed there
// is the schema cache key.
func NewManager(pool []Endpoint, connectTimeout time.Duration, protocolVersion int, opts ...Option) *Manager {
	m := &Manager{
		pool:            pool,
		dialer:          realDialer{},
		connectTimeout:  connectTimeout,
		protocolVersion: protocolVersion,
		sessionID:       uuid.NewString(),
		log:             slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Option configures a Manager at construction.
type Option func(*Manager)

func WithDialer(d Dialer) Option { return func(m *Manager) { m.dialer = d } }
func WithSchemaCache(c SchemaCache, primaryURL string) Option {
	return func(m *Manager) { m.schemaCache = c; m.primaryURL = primaryURL }
}
func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.log = l } }

// connect walks the pool round-robin from where it last left off,
// rebinding saved state on success, until one endpoint accepts the
// connection or the pool is exhausted.
func (m *Manager) connect() error {
	for m.poolIndex < len(m.pool) {
		ep := m.pool[m.poolIndex]
		m.poolIndex++

		c, err := m.dialer.Dial(ep, m.connectTimeout)
		if err != nil {
			m.log.Warn("connect attempt failed", "session_id", m.sessionID, "endpoint", ep.URL(), "error", err)
			if isTransientErr(err) {
				continue
			}
			return wrapLDAPError(err)
		}

		if m.bound.bound {
			if err := c.Bind(m.bound.dn, m.bound.password); err != nil {
				c.Close()
				if isTransientErr(err) {
					continue
				}
				return wrapLDAPError(err)
			}
		}

		m.conn = c
		m.log.Info("connected", "session_id", m.sessionID, "endpoint", ep.URL())
		return nil
	}
	return LDAPFailure{Code: CodeServerDown, Message: "endpoint pool exhausted"}
}

// withRetry dispatches op, reconnecting and re-issuing it exactly once if
// the first attempt fails with a transient transport code. Non-transient
// failures (bad credentials, constraint violations, and the like)
// propagate straight back without touching the connection.
func withRetry[T any](m *Manager, op func() (T, error)) (T, error) {
	var zero T
	if m.conn == nil {
		if err := m.connect(); err != nil {
			return zero, err
		}
	}

	v, err := op()
	if err == nil {
		return v, nil
	}
	if !isTransientErr(err) {
		return zero, wrapLDAPError(err)
	}

	m.log.Warn("transient failure, reconnecting", "session_id", m.sessionID, "error", err)
	m.conn.Close()
	m.conn = nil
	if err := m.connect(); err != nil {
		return zero, err
	}
	v, err = op()
	if err != nil {
		return zero, wrapLDAPError(err)
	}
	return v, nil
}

// Bind stores the bind state before sending it, so a later reconnect can
// rebind automatically. An anonymous bind is Bind("", "", Simple).
func (m *Manager) Bind(dn, password string, method BindMethod) error {
	m.bound = boundState{dn: dn, password: password, method: method, bound: true}
	_, err := withRetry(m, func() (struct{}, error) {
		return struct{}{}, m.conn.Bind(dn, password)
	})
	return err
}

// Unbind closes the transport; go-ldap's Close sends the Unbind PDU
// before closing the socket.
func (m *Manager) Unbind() error {
	if m.conn == nil {
		return nil
	}
	m.conn.Close()
	m.conn = nil
	return nil
}

// Add issues an AddRequest built from e's full attribute set.
func (m *Manager) Add(e *entry.Entry) error {
	req := ldap.NewAddRequest(e.DN(), nil)
	for _, attr := range e.Attributes() {
		req.Attribute(attr, e.GetValue(attr))
	}
	_, err := withRetry(m, func() (struct{}, error) {
		return struct{}{}, m.conn.Add(req)
	})
	return err
}

// Modify issues a single ModifyRequest built from records, in order.
func (m *Manager) Modify(dn string, records []entry.Record) error {
	if len(records) == 0 {
		return nil
	}
	req := ldap.NewModifyRequest(dn, nil)
	for _, r := range records {
		switch r.Op {
		case entry.OpAdd:
			req.Add(r.Attr, r.Values)
		case entry.OpDelete:
			req.Delete(r.Attr, r.Values)
		case entry.OpReplace:
			req.Replace(r.Attr, r.Values)
		}
	}
	_, err := withRetry(m, func() (struct{}, error) {
		return struct{}{}, m.conn.Modify(req)
	})
	return err
}

// Delete issues a DelRequest for dn.
func (m *Manager) Delete(dn string) error {
	req := ldap.NewDelRequest(dn, nil)
	_, err := withRetry(m, func() (struct{}, error) {
		return struct{}{}, m.conn.Del(req)
	})
	return err
}

// ModRDN renames dn. A non-empty newSuperior requires protocol version 3.
func (m *Manager) ModRDN(dn, newRDN string, deleteOldRDN bool, newSuperior string) error {
	if newSuperior != "" && m.protocolVersion < 3 {
		return LDAPFailure{Code: CodeProtocolError, Message: "new superior requires protocol version 3"}
	}
	req := ldap.NewModifyDNRequest(dn, newRDN, deleteOldRDN, newSuperior)
	_, err := withRetry(m, func() (struct{}, error) {
		return struct{}{}, m.conn.ModifyDN(req)
	})
	return err
}

// Search buffers every matching entry and returns it as a slice.
func (m *Manager) Search(base string, scope Scope, filter string, attrs []string, attrsOnly bool) ([]*entry.Entry, error) {
	req := ldap.NewSearchRequest(base, scope.toLdap(), ldap.NeverDerefAliases, 0, 0, attrsOnly, filter, attrs, nil)
	result, err := withRetry(m, func() (*ldap.SearchResult, error) {
		return m.conn.Search(req)
	})
	if err != nil {
		return nil, err
	}
	out := make([]*entry.Entry, 0, len(result.Entries))
	for _, le := range result.Entries {
		out = append(out, ldapEntryToEntry(le))
	}
	return out, nil
}

func (m *Manager) readByDN(dn string) (*entry.Entry, error) {
	results, err := m.Search(dn, ScopeBase, "(objectClass=*)", nil, false)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, LDAPFailure{Code: CodeNoSuchObject, Message: dn}
	}
	return results[0], nil
}

// UpdateEntry dispatches e by its pending change type: ADD/DELETE/MODRDN
// issue the matching request directly; otherwise the server is re-read by
// DN and e.Changes() is applied as a single Modify. FlushChanges is
// called only after the dispatched request succeeds, so a failed commit
// leaves the entry's change log intact for a retry.
func (m *Manager) UpdateEntry(e *entry.Entry) error {
	switch e.ChangeType() {
	case entry.ChangeAdd:
		if err := m.Add(e); err != nil {
			return err
		}
	case entry.ChangeDelete:
		if err := m.Delete(e.DN()); err != nil {
			return err
		}
	case entry.ChangeModRDN, entry.ChangeModDN:
		if err := m.ModRDN(e.DN(), e.NewRDN, e.DeleteOldRDN, e.NewSuperior); err != nil {
			return err
		}
	default:
		if _, err := m.readByDN(e.DN()); err != nil {
			return err
		}
		changes := e.Changes()
		if len(changes) == 0 {
			return nil
		}
		if err := m.Modify(e.DN(), changes); err != nil {
			return err
		}
	}
	e.FlushChanges()
	return nil
}

// RawSchema fetches the server's schema attributes via the root DSE's
// subschemaSubentry, uncached.
func (m *Manager) RawSchema() (map[string][]string, error) {
	rootDSE, err := m.Search("", ScopeBase, "(objectClass=*)", []string{"subschemaSubentry"}, false)
	if err != nil {
		return nil, err
	}
	if len(rootDSE) == 0 {
		return nil, fmt.Errorf("server returned no root DSE")
	}
	subentryDN := rootDSE[0].GetValue("subschemaSubentry")
	if len(subentryDN) == 0 {
		return nil, fmt.Errorf("root DSE has no subschemaSubentry")
	}

	schemaEntries, err := m.Search(subentryDN[0], ScopeBase, "(objectClass=*)", []string{"attributeTypes", "objectClasses"}, false)
	if err != nil {
		return nil, err
	}
	if len(schemaEntries) == 0 {
		return nil, fmt.Errorf("schema entry %q not found", subentryDN[0])
	}

	se := schemaEntries[0]
	raw := make(map[string][]string)
	for _, attr := range se.Attributes() {
		raw[attr] = se.GetValue(attr)
	}
	return raw, nil
}

// Schema fetches and parses the server's schema via parser, memoizing the
// result for the connection's life. If a SchemaCache is configured, it is
// consulted before the root-DSE round trip and populated after a fresh
// fetch.
func (m *Manager) Schema(parser schema.RawSchemaParser) (*schema.Schema, error) {
	if m.schema != nil {
		return m.schema, nil
	}

	if m.schemaCache != nil {
		if raw, ok, err := m.schemaCache.Load(m.primaryURL); err == nil && ok {
			sch, err := parser.Parse(raw)
			if err == nil {
				m.schema = sch
				return sch, nil
			}
		}
	}

	raw, err := m.RawSchema()
	if err != nil {
		return nil, err
	}
	sch, err := parser.Parse(raw)
	if err != nil {
		return nil, err
	}
	m.schema = sch

	if m.schemaCache != nil {
		if err := m.schemaCache.Store(m.primaryURL, raw); err != nil {
			m.log.Warn("schema cache store failed", "session_id", m.sessionID, "error", err)
		}
	}
	return sch, nil
}

func ldapEntryToEntry(le *ldap.Entry) *entry.Entry {
	e := entry.New(le.DN)
	e.SetChangeType(entry.ChangeModify) // a read entry carries no pending add
	for _, attr := range le.Attributes {
		e.Add(attr.Name, attr.Values)
	}
	e.FlushChanges()
	return e
}
