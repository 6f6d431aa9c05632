package referral

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefix for staged referral codes.
	stagedCodeKeyPrefix = "referral:staged:"

	// stagingTTL bounds how long a staged code survives an abandoned
	// login. The authentication round-trip takes seconds; an hour is
	// generous.
	stagingTTL = time.Hour
)

// RedisStaging is a Redis-backed staging store for deployments where logins
// may land on different instances between the landing request and the
// authentication callback.
type RedisStaging struct {
	client *redis.Client
}

func NewRedisStaging(client *redis.Client) *RedisStaging {
	return &RedisStaging{client: client}
}

func (s *RedisStaging) Stage(ctx context.Context, sessionID, code string) error {
	if sessionID == "" || code == "" {
		return nil
	}
	return s.client.Set(ctx, stagedCodeKeyPrefix+sessionID, code, stagingTTL).Err()
}

// Consume uses GETDEL so a staged code is observed by exactly one caller
// even under concurrent callback deliveries.
func (s *RedisStaging) Consume(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", nil
	}
	code, err := s.client.GetDel(ctx, stagedCodeKeyPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return code, nil
}
