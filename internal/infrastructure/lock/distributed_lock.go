package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis SetNX lock taken around a card operation before its database
// transaction. The row lock inside the transaction is what guarantees
// correctness; this lock keeps retried requests for the same card from piling
// up on the database and serializing at the row lock under load.
//
// Lock:   SET key value NX EX timeout (value identifies the holder)
// Unlock: Lua check-and-delete, so an expired holder cannot delete a lock
//         that has since been granted to someone else.

var ErrLockFailed = errors.New("failed to acquire distributed lock")

// UnlockScript checks the lock holder before deleting the key.
const UnlockScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`

type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock attempts to acquire the lock without blocking.
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock acquires the lock, retrying up to maxRetries times.
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock releases the lock if this instance still holds it.
func (l *DistributedLock) Unlock(ctx context.Context) error {
	_, err := l.client.Eval(ctx, UnlockScript, []string{l.key}, l.value).Result()
	return err
}

// NewCardLock creates a per-card lock. Operations on different cards never
// contend; two operations on the same card serialize here first. The holder
// value is a fresh random token, so a retry that outlived its own expired
// lock cannot delete the lock a later acquisition now holds.
func NewCardLock(client *redis.Client, code string) *DistributedLock {
	key := fmt.Sprintf("card:lock:%s", code)
	return NewDistributedLock(client, key, newHolderToken(), 30*time.Second)
}

func newHolderToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	return hex.EncodeToString(buf)
}
