package httpadapter

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kirillkom/grantflow/internal/core/domain"
	"github.com/kirillkom/grantflow/internal/core/usecase"
)

const defaultSessionCacheSize = 1024

// SessionStore keeps the most recently used sessions in memory. Evicted or
// deleted sessions are reset so their in-flight computations stop.
type SessionStore struct {
	cache *lru.Cache[string, *usecase.Session]
}

func NewSessionStore(size int) (*SessionStore, error) {
	if size <= 0 {
		size = defaultSessionCacheSize
	}
	cache, err := lru.NewWithEvict[string, *usecase.Session](size, func(_ string, s *usecase.Session) {
		s.Abandon()
	})
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	return &SessionStore{cache: cache}, nil
}

func (s *SessionStore) Put(session *usecase.Session) {
	s.cache.Add(session.ID(), session)
}

func (s *SessionStore) Get(id string) (*usecase.Session, error) {
	session, ok := s.cache.Get(id)
	if !ok {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "session.get", fmt.Errorf("id=%s", id))
	}
	return session, nil
}

func (s *SessionStore) Delete(id string) error {
	if !s.cache.Remove(id) {
		return domain.WrapError(domain.ErrSessionNotFound, "session.delete", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (s *SessionStore) Len() int {
	return s.cache.Len()
}
