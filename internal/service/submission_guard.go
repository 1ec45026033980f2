package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const submissionGuardTTL = 10 * time.Second

// SubmissionGuard narrows the window in which two concurrent requests from
// the same session could both append a pending extension record. The
// ledger check alone is read-then-append and not atomic; a short-lived
// SETNX lock makes the common double-submit (double-click, retry) collapse
// to a single record. It is advisory only and does not survive Redis loss.
type SubmissionGuard struct {
	client redis.UniversalClient
	prefix string
}

func NewSubmissionGuard(client redis.UniversalClient, prefix string) *SubmissionGuard {
	return &SubmissionGuard{client: client, prefix: prefix}
}

// Acquire returns true if this caller won the right to create a request
// for the session. On Redis failure it returns true: the flat-file
// pending check remains the source of truth.
func (g *SubmissionGuard) Acquire(ctx context.Context, sessionID string) bool {
	ok, err := g.client.SetNX(ctx, g.key(sessionID), "1", submissionGuardTTL).Result()
	if err != nil {
		return true
	}
	return ok
}

// Release frees the lock early so a failed create does not block a retry
// for the full TTL.
func (g *SubmissionGuard) Release(ctx context.Context, sessionID string) {
	g.client.Del(ctx, g.key(sessionID))
}

func (g *SubmissionGuard) key(sessionID string) string {
	return g.prefix + ":extlock:" + sessionID
}
