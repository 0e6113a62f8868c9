package locks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockTimeout occurs when lock acquisition times out
	ErrLockTimeout = errors.New("timeout acquiring lock")
	// ErrLockNotHeld occurs when releasing a lock not held by this instance
	ErrLockNotHeld = errors.New("lock not held by this instance")
	// ErrLockAlreadyHeld occurs when the lock is held by another instance
	ErrLockAlreadyHeld = errors.New("lock already held by another instance")
)

const (
	// DefaultLockTTL bounds how long a crashed holder can block others.
	DefaultLockTTL = 10 * time.Second
	// DefaultAcquireTimeout is the total time spent retrying acquisition.
	DefaultAcquireTimeout = 3 * time.Second
	// DefaultRetryAttempts is the number of SET NX attempts before giving up.
	DefaultRetryAttempts = 3
)

// releaseScript deletes the lock key only when this instance still owns it,
// so a lock that expired and was re-acquired elsewhere is never deleted.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Manager hands out distributed locks backed by Redis SET NX. The
// matchmaker holds one per user across its find-or-create transaction so a
// double-submitted request cannot race itself into two waiting matches.
type Manager struct {
	redis      *redis.Client
	instanceID string
}

// Lock is one acquired lock. Release it with the context still live.
type Lock struct {
	key        string
	value      string
	manager    *Manager
	acquiredAt time.Time
}

// NewManager creates a lock manager with a unique instance identity.
func NewManager(redisClient *redis.Client) *Manager {
	return &Manager{
		redis:      redisClient,
		instanceID: uuid.New().String(),
	}
}

// MatchmakingKey is the per-user lock key guarding find-or-create.
func MatchmakingKey(userID int64) string {
	return fmt.Sprintf("matchmaking:user:%d", userID)
}

// Acquire attempts to take the lock, retrying with backoff until
// DefaultAcquireTimeout elapses.
func (m *Manager) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	if ttl == 0 {
		ttl = DefaultLockTTL
	}

	acquireCtx, cancel := context.WithTimeout(ctx, DefaultAcquireTimeout)
	defer cancel()

	lockKey := "lock:" + key
	lockValue := fmt.Sprintf("%s:%s", m.instanceID, uuid.New().String())

	var lastErr error
	for attempt := 0; attempt < DefaultRetryAttempts; attempt++ {
		acquired, err := m.redis.SetNX(acquireCtx, lockKey, lockValue, ttl).Result()
		if err != nil {
			lastErr = fmt.Errorf("redis error: %w", err)
		} else if acquired {
			return &Lock{
				key:        lockKey,
				value:      lockValue,
				manager:    m,
				acquiredAt: time.Now(),
			}, nil
		} else {
			lastErr = ErrLockAlreadyHeld
		}

		select {
		case <-acquireCtx.Done():
			log.Printf("[LOCK] Timed out acquiring %s after %d attempts", lockKey, attempt+1)
			return nil, ErrLockTimeout
		case <-time.After(backoff(attempt)):
		}
	}

	log.Printf("[LOCK] Failed to acquire %s after %d attempts: %v", lockKey, DefaultRetryAttempts, lastErr)
	if lastErr == nil {
		lastErr = ErrLockTimeout
	}
	return nil, lastErr
}

// Release releases the lock if it is still held by this instance.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil {
		return ErrLockNotHeld
	}

	result, err := releaseScript.Run(ctx, l.manager.redis, []string{l.key}, l.value).Result()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if result == int64(0) {
		log.Printf("[LOCK] %s was not held by this instance (may have expired)", l.key)
		return ErrLockNotHeld
	}
	return nil
}

// backoff is exponential: 100ms, 200ms, 400ms, capped at 1s.
func backoff(attempt int) time.Duration {
	d := time.Duration(100*(1<<attempt)) * time.Millisecond
	if d > time.Second {
		d = time.Second
	}
	return d
}
