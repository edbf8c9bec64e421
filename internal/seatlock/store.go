// Package seatlock implements the distributed seat mutex on top of
// Redis.  A lock is a single key whose value is the holder's token;
// acquisition is SET NX PX so that under concurrent callers exactly
// one wins per (trip, seat), across processes.  Expiry is Redis-native
// TTL, which is the primary defense against abandoned holds: an
// unpaid hold vanishes on its own with no sweep required.
package seatlock

import (
    "context"
    "crypto/rand"
    "encoding/hex"
    "fmt"
    "time"

    "github.com/redis/go-redis/v9"
)

// NewToken generates a random holder token for a hold attempt.  The
// token is what makes Release owner-checked: only the creation flow
// that acquired a lock (or code acting on its booking, which stores
// the token) can delete it.
func NewToken() (string, error) {
    b := make([]byte, 16)
    if _, err := rand.Read(b); err != nil {
        return "", err
    }
    return hex.EncodeToString(b), nil
}

// releaseScript deletes the lock only when the caller still owns it.
// GET/compare/DEL must be one atomic step or a lock that expired and
// was re-acquired by someone else could be deleted by the old holder.
var releaseScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

// extendScript refreshes the TTL only for the current owner.
var extendScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('PEXPIRE', KEYS[1], ARGV[2])
    end
    return 0
`)

// Store is the Redis-backed seat lock store.
type Store struct {
    rdb *redis.Client
}

// New returns a Store bound to the provided Redis client.  The client
// must be non-nil: unlike caching, seat locking cannot degrade
// gracefully without losing the fast-path double-sale guard.
func New(rdb *redis.Client) *Store {
    if rdb == nil {
        panic("nil redis client passed to seatlock.New")
    }
    return &Store{rdb: rdb}
}

// Key returns the Redis key for a (trip, seat) lock.
func Key(tripID, seatID uint64) string {
    return fmt.Sprintf("seatlock:%d:%d", tripID, seatID)
}

// Acquire attempts to take the lock for the holder, with the given
// TTL.  It returns false when another holder already owns the lock;
// denied attempts never block, the client simply retries another seat.
func (s *Store) Acquire(ctx context.Context, tripID, seatID uint64, holder string, ttl time.Duration) (bool, error) {
    return s.rdb.SetNX(ctx, Key(tripID, seatID), holder, ttl).Result()
}

// Release deletes the lock if the caller still owns it.  Returns
// false when the lock is gone (expired) or owned by someone else;
// both are harmless for the caller's purposes.
func (s *Store) Release(ctx context.Context, tripID, seatID uint64, holder string) (bool, error) {
    n, err := releaseScript.Run(ctx, s.rdb, []string{Key(tripID, seatID)}, holder).Int64()
    if err != nil {
        return false, err
    }
    return n == 1, nil
}

// Extend refreshes the TTL of a lock the caller owns.  Returns false
// when the lock expired or changed hands in the meantime.
func (s *Store) Extend(ctx context.Context, tripID, seatID uint64, holder string, ttl time.Duration) (bool, error) {
    n, err := extendScript.Run(ctx, s.rdb, []string{Key(tripID, seatID)}, holder, ttl.Milliseconds()).Int64()
    if err != nil {
        return false, err
    }
    return n == 1, nil
}

// Holder returns the current lock holder, or "" when the seat is free.
func (s *Store) Holder(ctx context.Context, tripID, seatID uint64) (string, error) {
    v, err := s.rdb.Get(ctx, Key(tripID, seatID)).Result()
    if err == redis.Nil {
        return "", nil
    }
    if err != nil {
        return "", err
    }
    return v, nil
}
