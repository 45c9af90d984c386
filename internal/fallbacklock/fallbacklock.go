// Package fallbacklock guards the in-process FallbackRuntime against
// starting a second run for the same Job. The durable Temporal engine
// already refuses a colliding workflow ID; the in-memory fallback engine
// has no such cross-process coordination, so a retried submission that
// reaches two different server processes before the first CreateJob
// commit is visible could otherwise start the iteration loop twice. A
// Redis SETNX with a TTL gives that coordination without the fallback
// path depending on Redis being reachable to function at all.
package fallbacklock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker claims a short-lived, cross-process slot per Job ID. A nil
// *Locker (no REDIS_URL configured) makes TryAcquire always succeed,
// matching a single-process deployment where only one FallbackRuntime
// worker ever runs and the guard is unnecessary.
type Locker struct {
	rdb *redis.Client
	ttl time.Duration
}

// New returns a Locker backed by rdb. ttl should comfortably exceed the
// longest a fallback run can take (safety + MAX_ITERATIONS iterations of
// plan/execute/QA). The orchestrator releases the lock with Release when a
// run ends; the ttl makes it self-expire if a run never reaches that
// release.
func New(rdb *redis.Client, ttl time.Duration) *Locker {
	return &Locker{rdb: rdb, ttl: ttl}
}

func keyFor(jobID string) string {
	return fmt.Sprintf("editpipeline:fallback:inflight:%s", jobID)
}

// TryAcquire reports whether this call is the one that gets to start the
// fallback run for jobID. false means another process already claimed it
// and the caller should treat the submission as already in flight rather
// than starting a competing workflow.
func (l *Locker) TryAcquire(ctx context.Context, jobID string) (bool, error) {
	if l == nil || l.rdb == nil {
		return true, nil
	}
	ok, err := l.rdb.SetNX(ctx, keyFor(jobID), "1", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("fallbacklock: acquire %s: %w", jobID, err)
	}
	return ok, nil
}

// Release frees jobID's slot early, used after a terminal status is
// reached so an operator-issued rerun isn't stuck waiting out the TTL.
func (l *Locker) Release(ctx context.Context, jobID string) {
	if l == nil || l.rdb == nil {
		return
	}
	_ = l.rdb.Del(ctx, keyFor(jobID)).Err()
}
