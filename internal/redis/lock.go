package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("scheduling lock not acquired")
)

// Locker guards the booking engine's check-then-insert critical section.
// The shared resources are the physician's calendar and the patient's own
// schedule, so there is one lock per physician and one per patient; two
// concurrent bookings that share neither never contend. Callers nesting
// both locks must take the physician lock first, then the patient lock,
// so lock order is fixed process-wide.
type Locker interface {
	WithPhysicianLock(ctx context.Context, physicianID uuid.UUID, fn func(ctx context.Context) error) error
	WithPatientLock(ctx context.Context, patientID uuid.UUID, fn func(ctx context.Context) error) error
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a locker backed by per-key Redis SetNX, so the
// booking invariants hold across processes.
func NewRedisLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisLocker) WithPhysicianLock(ctx context.Context, physicianID uuid.UUID, fn func(ctx context.Context) error) error {
	return l.withLock(ctx, "lock:physician:"+physicianID.String(), fn)
}

func (l *redisLocker) WithPatientLock(ctx context.Context, patientID uuid.UUID, fn func(ctx context.Context) error) error {
	return l.withLock(ctx, "lock:patient:"+patientID.String(), fn)
}

func (l *redisLocker) withLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}

// LocalLocker serializes the same critical sections inside a single
// process. It backs the in-memory store and tests; a waiting caller blocks
// instead of failing and then loses on the overlap re-check.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) WithPhysicianLock(ctx context.Context, physicianID uuid.UUID, fn func(ctx context.Context) error) error {
	return l.withLock(ctx, "physician:"+physicianID.String(), fn)
}

func (l *LocalLocker) WithPatientLock(ctx context.Context, patientID uuid.UUID, fn func(ctx context.Context) error) error {
	return l.withLock(ctx, "patient:"+patientID.String(), fn)
}

func (l *LocalLocker) withLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}
