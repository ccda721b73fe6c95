package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseGuardScript deletes the guard only if it still holds our token.
var releaseGuardScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// SubmissionGuard is a short-lived Redis lock per (teacher, equivalence key)
// that keeps a double submission from calling the recommender twice. With no
// client every acquire succeeds and the database indexes remain the only guard.
type SubmissionGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSubmissionGuard constructs the guard.
func NewSubmissionGuard(client *redis.Client, ttl time.Duration) *SubmissionGuard {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &SubmissionGuard{client: client, ttl: ttl}
}

func guardKey(teacherID, key string) string {
	return fmt.Sprintf("%ssubmission:%s:%s", cacheKeyPrefix, teacherID, key)
}

// Acquire tries to take the guard. It returns false when another submission
// holds it, and a release func that must be called once the submission ends.
func (g *SubmissionGuard) Acquire(ctx context.Context, teacherID, key string) (bool, func(), error) {
	if g == nil || g.client == nil {
		return true, func() {}, nil
	}
	token := uuid.NewString()
	redisKey := guardKey(teacherID, key)
	ok, err := g.client.SetNX(ctx, redisKey, token, g.ttl).Result()
	if err != nil {
		return false, func() {}, fmt.Errorf("acquire submission guard: %w", err)
	}
	if !ok {
		return false, func() {}, nil
	}
	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = releaseGuardScript.Run(releaseCtx, g.client, []string{redisKey}, token).Err()
	}
	return true, release, nil
}
