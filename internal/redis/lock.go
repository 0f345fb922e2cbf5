package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("mechanic day lock not acquired")
)

const lockRetryInterval = 25 * time.Millisecond

// Locker is used by the appointment service to serialize bookings per
// mechanic and calendar date.
type Locker interface {
	WithMechanicDayLock(ctx context.Context, mechanicID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error
}

type redisMechanicDayLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewMechanicDayLocker creates a locker keyed by mechanic and date. A
// contended lock is retried for up to wait before giving up.
func NewMechanicDayLocker(client *redis.Client, ttl, wait time.Duration) Locker {
	return &redisMechanicDayLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
	}
}

func LockKey(mechanicID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("lock:mechanic:%s:%s", mechanicID.String(), date.Format(time.DateOnly))
}

func (l *redisMechanicDayLocker) WithMechanicDayLock(ctx context.Context, mechanicID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	key := LockKey(mechanicID, date)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// the caller's ctx may be done by now; release must still run
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisMechanicDayLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire mechanic day lock: %w", err)
		}
		if ok {
			return nil
		}
		if !time.Now().Add(lockRetryInterval).Before(deadline) {
			return ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("acquire mechanic day lock: %w", ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisMechanicDayLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release mechanic day lock: %w", err)
	}
	return nil
}
