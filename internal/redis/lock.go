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
	// ErrLockNotAcquired means another booking held the doctor's lock for
	// longer than the configured wait.
	ErrLockNotAcquired = errors.New("doctor lock not acquired")

	// ErrLockUnavailable wraps failures talking to the lock store itself.
	ErrLockUnavailable = errors.New("doctor lock store unavailable")
)

const (
	minPoll = 10 * time.Millisecond
	maxPoll = 100 * time.Millisecond
)

// Locker serializes booking writes for one doctor across API instances.
// Errors returned by fn are passed through unchanged.
type Locker interface {
	WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error
}

// lockStore is the part of Redis the locker talks to.
type lockStore interface {
	setNX(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	release(ctx context.Context, key, token string) error
}

// DoctorLocker holds one lock per doctor. A booking that finds the lock taken
// waits for it, polling with backoff, until wait runs out or ctx is done.
type DoctorLocker struct {
	store lockStore
	ttl   time.Duration
	wait  time.Duration
}

// NewRedisDoctorLocker creates a locker backed by SET NX keys. ttl bounds both
// the key lifetime and the critical section; wait bounds the queueing time.
func NewRedisDoctorLocker(client *redis.Client, ttl, wait time.Duration) *DoctorLocker {
	return newDoctorLocker(redisStore{client: client}, ttl, wait)
}

func newDoctorLocker(store lockStore, ttl, wait time.Duration) *DoctorLocker {
	return &DoctorLocker{store: store, ttl: ttl, wait: wait}
}

func lockKey(doctorID uuid.UUID) string {
	return fmt.Sprintf("lock:doctor:%s", doctorID.String())
}

func (l *DoctorLocker) WithDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	key := lockKey(doctorID)
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}

	defer func() {
		// release even when ctx was cancelled mid-section
		_ = l.store.release(context.WithoutCancel(ctx), key, token)
	}()

	sectionCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(sectionCtx)
}

func (l *DoctorLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	delay := minPoll

	for {
		ok, err := l.store.setNX(ctx, key, token, l.ttl)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%w: %w", ErrLockUnavailable, err)
		}
		if ok {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrLockNotAcquired
		}

		timer := time.NewTimer(min(delay, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, maxPoll)
	}
}

type redisStore struct {
	client *redis.Client
}

func (s redisStore) setNX(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, token, ttl).Result()
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (s redisStore) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, s.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release doctor lock: %w", err)
	}
	return nil
}

// NoopLocker runs fn without any coordination. Single-instance deployments
// and tests use it; the unique index still rejects double bookings.
type NoopLocker struct{}

func (NoopLocker) WithDoctorLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
