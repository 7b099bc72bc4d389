package presence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/cwrk-planet/roomgate/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "online:user:"
	redisSetKey    = "online:users"
)

// RedisStore: ключ online:user:<id> с EX ttl плюс множество online:users
// для перечисления. Члены множества без живого ключа вычищаются при чтении
// одним Lua-скриптом.
type RedisStore struct {
	rdb redis.UniversalClient
}

func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func userKey(uid domain.UserID) string {
	return redisKeyPrefix + strconv.FormatInt(int64(uid), 10)
}

func (s *RedisStore) Set(ctx context.Context, uid domain.UserID, ttl time.Duration) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, userKey(uid), 1, ttl)
		p.SAdd(ctx, redisSetKey, int64(uid))
		return nil
	})
	return mapRedisError(err)
}

func (s *RedisStore) Touch(ctx context.Context, uid domain.UserID, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.Expire(ctx, userKey(uid), ttl).Result()
	if err != nil {
		return false, mapRedisError(err)
	}
	return ok, nil
}

func (s *RedisStore) Delete(ctx context.Context, uid domain.UserID) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, userKey(uid))
		p.SRem(ctx, redisSetKey, int64(uid))
		return nil
	})
	return mapRedisError(err)
}

func (s *RedisStore) Exists(ctx context.Context, uid domain.UserID) (bool, error) {
	n, err := s.rdb.Exists(ctx, userKey(uid)).Result()
	if err != nil {
		return false, mapRedisError(err)
	}
	return n > 0, nil
}

// membersScript отдаёт живых членов множества и за тот же шаг вычищает
// тех, чей ключ истёк. Проверка и SREM атомарны относительно Set.
var membersScript = redis.NewScript(`
local live = {}
for _, id in ipairs(redis.call('SMEMBERS', KEYS[1])) do
  if redis.call('EXISTS', ARGV[1] .. id) == 1 then
    live[#live + 1] = id
  else
    redis.call('SREM', KEYS[1], id)
  end
end
return live
`)

func (s *RedisStore) Members(ctx context.Context) ([]domain.UserID, error) {
	raw, err := membersScript.Run(ctx, s.rdb, []string{redisSetKey}, redisKeyPrefix).StringSlice()
	if err != nil {
		return nil, mapRedisError(err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	out := make([]domain.UserID, 0, len(raw))
	for _, v := range raw {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, domain.UserID(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	m, err := s.Members(ctx)
	return len(m), err
}

func mapRedisError(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return nil
	}
	return fmt.Errorf("%w: redis: %v", domain.ErrUnavailable, err)
}
