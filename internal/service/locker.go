package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serialises conflict-check-then-write sequences per resource.
// Lock acquires every key (duplicates are ignored) and returns a function
// that releases them; it blocks until all keys are held or ctx is done.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (unlock func(), err error)
}

// normalizeKeys drops empty and duplicate keys and sorts the rest so that
// every caller acquires locks in the same order.
func normalizeKeys(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// LocalLocker is an in-process keyed lock.  It only protects a single
// replica; use RedisLocker when several instances share one store.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *LocalLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalizeKeys(keys)
	held := make([]chan struct{}, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}
	for _, k := range keys {
		ch := l.slot(k)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}
	var once sync.Once
	return func() { once.Do(release) }, nil
}

// ErrLockTimeout is returned by RedisLocker when a key stays taken for
// longer than the configured wait.
var ErrLockTimeout = errors.New("timed out waiting for resource lock")

// releaseScript deletes the key only if it still holds our token, so an
// expired lock that was re-acquired by someone else is left alone.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// RedisLocker is a distributed lock built on SET NX PX.  TTL bounds how
// long a crashed holder can block a resource; Wait bounds how long Lock
// retries before giving up.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

func NewRedisLocker(rdb *redis.Client, prefix string, ttl, wait time.Duration) *RedisLocker {
	if prefix == "" {
		prefix = "lock:resource"
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &RedisLocker{rdb: rdb, prefix: prefix, ttl: ttl, wait: wait, retry: 25 * time.Millisecond}
}

func (l *RedisLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalizeKeys(keys)
	token := uuid.NewString()
	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	var held []string
	release := func() {
		// Release with a fresh context: the request may already be done.
		rctx, rcancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer rcancel()
		for _, k := range held {
			_ = releaseScript.Run(rctx, l.rdb, []string{k}, token).Err()
		}
	}

	for _, k := range keys {
		key := l.prefix + ":" + k
		for {
			ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
			if err != nil {
				release()
				if ctx.Err() != nil {
					return nil, ErrLockTimeout
				}
				return nil, err
			}
			if ok {
				held = append(held, key)
				break
			}
			select {
			case <-time.After(l.retry):
			case <-ctx.Done():
				release()
				return nil, ErrLockTimeout
			}
		}
	}
	var once sync.Once
	return func() { once.Do(release) }, nil
}
