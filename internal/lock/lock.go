// Package lock provides per-report edit leases so that edits to one report
// run one at a time.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when the lease is still held by someone else after
// the wait period.
var ErrLocked = errors.New("report is locked by another edit")

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out leases keyed by name.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lease, error)
}

const pollInterval = 50 * time.Millisecond

// acquire polls try until it succeeds, wait elapses or ctx is done.
func acquire(ctx context.Context, key string, wait time.Duration, try func(context.Context) (bool, error)) error {
	deadline := time.Now().Add(wait)
	for {
		ok, err := try(ctx)
		if err != nil {
			return fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%s: %w", key, ErrLocked)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis implements Locker with SET NX PX and a token-checked release.
// A lease expires after TTL even if never released.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
}

// NewRedis parses redisURL and checks the connection.
func NewRedis(redisURL string, ttl, wait time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisWithClient(client, ttl, wait), nil
}

func NewRedisWithClient(client *redis.Client, ttl, wait time.Duration) *Redis {
	return &Redis{client: client, prefix: "reportedit:lock:", ttl: ttl, wait: wait}
}

func (r *Redis) Acquire(ctx context.Context, key string) (Lease, error) {
	k := r.prefix + key
	token := uuid.NewString()
	err := acquire(ctx, key, r.wait, func(ctx context.Context) (bool, error) {
		return r.client.SetNX(ctx, k, token, r.ttl).Result()
	})
	if err != nil {
		return nil, err
	}
	return &redisLease{client: r.client, key: k, token: token}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}

// Local implements Locker inside one process with the same expiry rules
// as Redis.
type Local struct {
	mu   sync.Mutex
	held map[string]localEntry
	ttl  time.Duration
	wait time.Duration
	now  func() time.Time
}

type localEntry struct {
	token   string
	expires time.Time
}

func NewLocal(ttl, wait time.Duration) *Local {
	return &Local{held: make(map[string]localEntry), ttl: ttl, wait: wait, now: time.Now}
}

func (l *Local) Acquire(ctx context.Context, key string) (Lease, error) {
	token := uuid.NewString()
	err := acquire(ctx, key, l.wait, func(context.Context) (bool, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		now := l.now()
		if e, ok := l.held[key]; ok && now.Before(e.expires) {
			return false, nil
		}
		l.held[key] = localEntry{token: token, expires: now.Add(l.ttl)}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &localLease{owner: l, key: key, token: token}, nil
}

type localLease struct {
	owner *Local
	key   string
	token string
}

func (l *localLease) Release(context.Context) error {
	l.owner.mu.Lock()
	defer l.owner.mu.Unlock()
	if e, ok := l.owner.held[l.key]; ok && e.token == l.token {
		delete(l.owner.held, l.key)
	}
	return nil
}
