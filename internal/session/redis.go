package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces session keys.
const DefaultKeyPrefix = "rmi:import:"

// RedisStore keeps each session as a JSON value plus a sorted-set index
// scored by creation time so old sessions can be purged without SCAN.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

// NewRedisStore wraps a connected client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) sessionKey(userID int64) string {
	return s.prefix + "session:" + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "sessions"
}

type redisSession struct {
	Session
	CreatedUnix int64 `json:"created_unix"`
}

// Save stores s, replacing the user's previous session.
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(redisSession{Session: *sess, CreatedUnix: sess.CreatedAt.Unix()})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(sess.UserID), data, 0)
		pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(sess.CreatedAt.Unix()), Member: sess.UserID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Get returns the user's session or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, userID int64) (*Session, error) {
	data, err := s.redis.Get(ctx, s.sessionKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var rs redisSession
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	rs.Session.CreatedAt = time.Unix(rs.CreatedUnix, 0)
	return &rs.Session, nil
}

// Delete removes the user's session if present.
func (s *RedisStore) Delete(ctx context.Context, userID int64) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(userID))
		pipe.ZRem(ctx, s.indexKey(), userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeBefore removes sessions created before cutoff.
func (s *RedisStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	members, err := s.redis.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list stale sessions: %w", err)
	}
	if len(members) == 0 {
		return 0, nil
	}
	keys := make([]string, len(members))
	ids := make([]interface{}, len(members))
	for i, m := range members {
		keys[i] = s.prefix + "session:" + m
		ids[i] = m
	}
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, s.indexKey(), ids...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return len(members), nil
}
