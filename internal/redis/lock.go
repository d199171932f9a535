package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("slot lock not acquired")
	// ErrLockUnavailable means the lock store could not be reached. The
	// callback has not run.
	ErrLockUnavailable = errors.New("slot lock store unavailable")

	errLockBusy = errors.New("slot lock busy")
)

// Locker is used by the booking service to serialize attempts per slot across
// API replicas before they reach the database.
type Locker interface {
	WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error
}

type redisSlotLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisSlotLocker creates a locker that uses a per slot Redis key. A busy
// lock is polled with exponential backoff for up to wait before giving up.
func NewRedisSlotLocker(client *redis.Client, ttl, wait time.Duration) Locker {
	return &redisSlotLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
	}
}

func slotLockKey(slotID uuid.UUID) string {
	return fmt.Sprintf("lock:slot:%s", slotID.String())
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(ctx context.Context) error) error {
	key := slotLockKey(slotID)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisSlotLocker) acquire(ctx context.Context, key, token string) error {
	try := func() error {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("acquire slot lock: %w: %w", ErrLockUnavailable, err))
		}
		if !ok {
			return errLockBusy
		}
		return nil
	}

	var policy backoff.BackOff = &backoff.StopBackOff{}
	if l.wait > 0 {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = 10 * time.Millisecond
		eb.MaxInterval = 200 * time.Millisecond
		eb.MaxElapsedTime = l.wait
		policy = eb
	}

	err := backoff.Retry(try, backoff.WithContext(policy, ctx))
	if errors.Is(err, errLockBusy) {
		return ErrLockNotAcquired
	}
	return err
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisSlotLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}
