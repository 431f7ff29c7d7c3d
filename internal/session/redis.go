package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/library-admin/pkg/logger"
)

const (
	fieldToken = "token"
	fieldRoles = "isRoles"
)

// RedisStore keeps each session in a hash under prefix+id.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *logger.Logger
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration, log *logger.Logger) *RedisStore {
	if prefix == "" {
		prefix = "library:session:"
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, logger: log}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Load(ctx context.Context, id string) (Session, error) {
	fields, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return Session{}, fmt.Errorf("failed to load session: %w", err)
	}
	if len(fields) == 0 {
		return Session{}, notFound(id)
	}
	rec := Record{Token: fields[fieldToken], Roles: fields[fieldRoles]}
	return FromRecord(id, rec, s.logger), nil
}

func (s *RedisStore) Save(ctx context.Context, sess Session) error {
	return s.SaveRecord(ctx, sess.ID, sess.Record())
}

// SaveRecord stores a raw record, bypassing the Session encoding.
func (s *RedisStore) SaveRecord(ctx context.Context, id string, rec Record) error {
	key := s.key(id)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldToken, rec.Token, fieldRoles, rec.Roles)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
