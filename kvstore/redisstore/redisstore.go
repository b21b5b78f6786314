package redisstore

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-client/kvstore"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ kvstore.Store = (*RedisStore)(nil)

type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // prepended to every key, e.g. "notesapp:"
}

type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// New connects to Redis and pings it before returning.
func New(ctx context.Context, opts Options) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "[redisstore.New] failed to connect to redis")
	}
	return NewWithClient(rdb, opts.Prefix), nil
}

func NewWithClient(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, kvstore.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[RedisStore.Get] redis GET")
	}
	return val, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return errors.Wrap(err, "[RedisStore.Set] redis SET")
	}
	return nil
}

func (r *RedisStore) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return errors.Wrap(err, "[RedisStore.Remove] redis DEL")
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
