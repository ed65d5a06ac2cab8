package query

import (
	"context"
	"sync"

	"github.com/kitbuilder587/abn-search/internal/domain"
)

type Snapshot struct {
	Query  string
	Result Result
	// ответ пришел на запрос, который уже перебит новым
	Superseded bool
}

// Session - то, что видит один пользователь: последний отправленный запрос и его
// результат. Ответ на запрос, который успели перебить новым, не показывается.
type Session struct {
	client *Client

	mu        sync.Mutex
	query     string
	submitted uint64
	visible   Result
}

func NewSession(client *Client) *Session {
	return &Session{client: client}
}

// Submit - пустой запрос игнорируется, состояние не меняется.
func (s *Session) Submit(ctx context.Context, raw string) Snapshot {
	q := domain.Key(raw)
	if q == "" {
		return s.Snapshot()
	}

	n := s.start(q)
	return s.finish(n, s.client.Fetch(ctx, q))
}

// Retry перезапрашивает текущий запрос в обход кеша.
func (s *Session) Retry(ctx context.Context) Snapshot {
	s.mu.Lock()
	q := s.query
	s.mu.Unlock()
	if q == "" {
		return s.Snapshot()
	}

	n := s.start(q)
	return s.finish(n, s.client.Refetch(ctx, q))
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{Query: s.query, Result: s.visible}
}

func (s *Session) start(q string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.query = q
	s.submitted++
	s.visible = Result{Query: q, Status: StatusPending, Fetching: true}
	return s.submitted
}

func (s *Session) finish(n uint64, res Result) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n != s.submitted {
		return Snapshot{Query: s.query, Result: s.visible, Superseded: true}
	}
	s.visible = res
	return Snapshot{Query: s.query, Result: s.visible}
}
