package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis-backed Store suitable for multi-server deployments.
//
// Each collection is a hash at "<prefix><collection>" mapping record ID to
// the JSON document. IDs are allocated with INCR on "<prefix><collection>:seq".
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// RedisStoreOption configures RedisStore behavior.
type RedisStoreOption func(*redisStoreConfig)

type redisStoreConfig struct {
	prefix string
}

// WithRedisPrefix sets the key prefix.
// Default: "postline:".
func WithRedisPrefix(prefix string) RedisStoreOption {
	return func(c *redisStoreConfig) {
		c.prefix = prefix
	}
}

// NewRedisStore wraps an existing client. The client is not closed by the store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	cfg := &redisStoreConfig{
		prefix: "postline:",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &RedisStore{
		client: client,
		prefix: cfg.prefix,
	}
}

// RedisOptions describes how to reach Redis.
type RedisOptions struct {
	// Addr is one address or a comma separated list for cluster/sentinel.
	Addr       string
	Username   string
	Password   string
	DB         int
	MasterName string
}

// DialRedis creates a universal client and verifies the connection.
func DialRedis(ctx context.Context, opts RedisOptions) (redis.UniversalClient, error) {
	var addrs []string
	for _, a := range strings.Split(opts.Addr, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:      addrs,
		Username:   opts.Username,
		Password:   opts.Password,
		DB:         opts.DB,
		MasterName: opts.MasterName,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("store: connect to redis: %w", err)
	}
	return client, nil
}

func (r *RedisStore) key(collection string) string {
	return r.prefix + collection
}

// Fetch implements Store.
func (r *RedisStore) Fetch(ctx context.Context, q Query) ([]Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if q.ID != "" {
		data, err := r.client.HGet(ctx, r.key(q.Collection), q.ID).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("store: hget %s/%s: %w", q.Collection, q.ID, err)
		}
		if !matches(data, q.Filter) {
			return nil, ErrNotFound
		}
		return []Record{{ID: q.ID, Data: json.RawMessage(data)}}, nil
	}

	all, err := r.client.HGetAll(ctx, r.key(q.Collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("store: hgetall %s: %w", q.Collection, err)
	}
	out := make([]Record, 0, len(all))
	for id, data := range all {
		raw := json.RawMessage(data)
		if matches(raw, q.Filter) {
			out = append(out, Record{ID: id, Data: raw})
		}
	}
	sort.Slice(out, func(i, j int) bool { return idLess(out[i].ID, out[j].ID) })
	return out, nil
}

// Save implements Store.
func (r *RedisStore) Save(ctx context.Context, collection string, rec Record) error {
	if err := (Query{Collection: collection}).Validate(); err != nil {
		return err
	}
	if err := r.client.HSet(ctx, r.key(collection), rec.ID, []byte(rec.Data)).Err(); err != nil {
		return fmt.Errorf("store: hset %s/%s: %w", collection, rec.ID, err)
	}
	if n, err := strconv.ParseInt(rec.ID, 10, 64); err == nil {
		if err := raiseSeq.Run(ctx, r.client, []string{r.key(collection) + ":seq"}, n).Err(); err != nil {
			return fmt.Errorf("store: raise sequence %s: %w", collection, err)
		}
	}
	return nil
}

// raiseSeq moves a sequence up to ARGV[1] so NextID never reissues an
// explicitly saved ID.
var raiseSeq = redis.NewScript(`
local cur = tonumber(redis.call("GET", KEYS[1]) or "0")
local want = tonumber(ARGV[1])
if want > cur then
  redis.call("SET", KEYS[1], want)
end
return 0
`)

// NextID implements Store.
func (r *RedisStore) NextID(ctx context.Context, collection string) (string, error) {
	n, err := r.client.Incr(ctx, r.key(collection)+":seq").Result()
	if err != nil {
		return "", fmt.Errorf("store: incr %s: %w", collection, err)
	}
	return strconv.FormatInt(n, 10), nil
}

// Prefix returns the key prefix.
func (r *RedisStore) Prefix() string {
	return r.prefix
}
