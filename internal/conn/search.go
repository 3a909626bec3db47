package conn

import (
	"github.com/go-ldap/ldap/v3"

	"github.com/smarzola/ldaptoolkit/internal/entry"
)

// ErrSearchDone is the distinguished terminal error SearchAsync's pull
// function returns once every page has been drained.
var ErrSearchDone = LDAPFailure{Code: CodeSuccess, Message: "no more results"}

// SearchStream is the pull-function handle SearchAsync returns. While one
// is live the owning Manager is busy and refuses a second concurrent
// stream, since a single physical connection can't interleave two
// in-flight operations.
type SearchStream struct {
	mgr *Manager

	base      string
	scope     Scope
	filter    string
	attrs     []string
	attrsOnly bool
	pageSize  uint32

	cookie    []byte
	buffer    []*entry.Entry
	done      bool
	abandoned bool
}

// SearchAsync starts a paged streaming search. pageSize controls how many
// entries are buffered per page request; it does not change the logical
// result set.
func (m *Manager) SearchAsync(base string, scope Scope, filter string, attrs []string, attrsOnly bool, pageSize uint32) (*SearchStream, error) {
	if m.busy {
		return nil, LDAPFailure{Code: CodeOperationsError, Message: "manager already has a streaming search in progress"}
	}
	if pageSize == 0 {
		pageSize = 100
	}
	m.busy = true
	return &SearchStream{
		mgr: m, base: base, scope: scope, filter: filter,
		attrs: attrs, attrsOnly: attrsOnly, pageSize: pageSize,
	}, nil
}

// Next returns the next result entry, fetching another page transparently
// when the current one is drained. ErrSearchDone signals end-of-results.
func (s *SearchStream) Next() (*entry.Entry, error) {
	if s.abandoned {
		return nil, ErrSearchDone
	}

	for len(s.buffer) == 0 {
		if s.done {
			s.release()
			return nil, ErrSearchDone
		}
		if err := s.fetchPage(); err != nil {
			s.release()
			return nil, err
		}
	}

	e := s.buffer[0]
	s.buffer = s.buffer[1:]
	return e, nil
}

// Abandon discards the stream without issuing any further page requests.
// The owning Manager becomes free for other operations immediately.
func (s *SearchStream) Abandon() {
	s.abandoned = true
	s.release()
}

func (s *SearchStream) release() {
	s.mgr.busy = false
}

func (s *SearchStream) fetchPage() error {
	paging := ldap.NewControlPaging(s.pageSize)
	if len(s.cookie) > 0 {
		paging.SetCookie(s.cookie)
	}

	req := ldap.NewSearchRequest(
		s.base, s.scope.toLdap(), ldap.NeverDerefAliases, 0, 0, s.attrsOnly,
		s.filter, s.attrs, []ldap.Control{paging},
	)

	result, err := withRetry(s.mgr, func() (*ldap.SearchResult, error) {
		return s.mgr.conn.Search(req)
	})
	if err != nil {
		return err
	}

	for _, le := range result.Entries {
		s.buffer = append(s.buffer, ldapEntryToEntry(le))
	}

	cookie := pagingCookie(result)
	if len(cookie) == 0 {
		s.done = true
	} else {
		s.cookie = cookie
	}
	return nil
}

func pagingCookie(result *ldap.SearchResult) []byte {
	for _, c := range result.Controls {
		if pc, ok := c.(*ldap.ControlPaging); ok {
			return pc.Cookie
		}
	}
	return nil
}
