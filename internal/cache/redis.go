package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// swapScript keeps the compare and the write in one server-side step.
var swapScript = redis.NewScript(`
local cur = redis.call('HMGET', KEYS[1], 'ts', 'data')
if cur[1] and tonumber(cur[1]) > tonumber(ARGV[1]) then
	return {0, cur[1], cur[2]}
end
redis.call('HSET', KEYS[1], 'ts', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
if cur[1] then
	return {1, cur[1], cur[2]}
end
return {1}
`)

// NewRedisClient parses redisURL and checks the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Println("[cache] Redis connection established")
	return client, nil
}

// RedisStore keeps each entry in a hash with "ts" and "data" fields.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	vals, err := s.client.HMGet(ctx, key, "ts", "data").Result()
	if err != nil {
		return nil, err
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return nil, ErrMiss
	}
	return decodeEntry(vals[0], vals[1])
}

func (s *RedisStore) Set(ctx context.Context, key string, e Entry, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "ts", e.Timestamp, "data", e.Data)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	return err
}

func (s *RedisStore) SwapIfNewer(ctx context.Context, key string, e Entry, ttl time.Duration) (*Entry, bool, error) {
	res, err := swapScript.Run(ctx, s.client, []string{key}, e.Timestamp, e.Data, ttl.Milliseconds()).Slice()
	if err != nil {
		return nil, false, err
	}
	if len(res) == 0 {
		return nil, false, errors.New("cache: empty swap reply")
	}

	swapped := res[0] == int64(1)
	if len(res) < 3 {
		return nil, swapped, nil
	}

	prev, err := decodeEntry(res[1], res[2])
	if err != nil {
		return nil, false, err
	}
	return prev, swapped, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *RedisStore) Push(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

func (s *RedisStore) Range(ctx context.Context, key string, limit int) ([][]byte, error) {
	if limit <= 0 {
		return nil, nil
	}
	vals, err := s.client.LRange(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		out = append(out, []byte(v))
	}
	return out, nil
}

// Close closes the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeEntry(ts, data interface{}) (*Entry, error) {
	tsStr, ok := ts.(string)
	if !ok {
		return nil, fmt.Errorf("cache: unexpected timestamp type %T", ts)
	}
	dataStr, ok := data.(string)
	if !ok {
		return nil, fmt.Errorf("cache: unexpected data type %T", data)
	}
	n, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("cache: bad timestamp %q: %w", tsStr, err)
	}
	return &Entry{Timestamp: n, Data: []byte(dataStr)}, nil
}
