package session

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/library-admin/pkg/logger"
)

// MemoryStore keeps records in process memory with a TTL.
type MemoryStore struct {
	cache  *cache.Cache
	ttl    time.Duration
	logger *logger.Logger
}

// NewMemoryStore creates a store whose records expire after ttl; zero
// means they never expire.
func NewMemoryStore(ttl time.Duration, log *logger.Logger) *MemoryStore {
	if log == nil {
		log = logger.Nop()
	}
	expiration := ttl
	if expiration <= 0 {
		expiration = cache.NoExpiration
	}
	return &MemoryStore{
		cache:  cache.New(expiration, 10*time.Minute),
		ttl:    expiration,
		logger: log,
	}
}

func (s *MemoryStore) Load(_ context.Context, id string) (Session, error) {
	v, ok := s.cache.Get(id)
	if !ok {
		return Session{}, notFound(id)
	}
	rec, ok := v.(Record)
	if !ok {
		return Session{}, notFound(id)
	}
	return FromRecord(id, rec, s.logger), nil
}

func (s *MemoryStore) Save(_ context.Context, sess Session) error {
	s.cache.Set(sess.ID, sess.Record(), s.ttl)
	return nil
}

// SaveRecord stores a raw record, bypassing the Session encoding.
func (s *MemoryStore) SaveRecord(id string, rec Record) {
	s.cache.Set(id, rec, s.ttl)
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.cache.Delete(id)
	return nil
}
