package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/videotube/account-service/internal/core/domain"
)

const defaultLockTTL = 5 * time.Second

// releaseScript deletes the lock only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RefreshLock serialises refresh-token rotations per user with SET NX.
// Key format: refresh-lock:<user_id>
type RefreshLock struct {
	client   *redis.Client
	ttl      time.Duration
	newToken func() string
}

// NewRefreshLock creates a RefreshLock. The TTL bounds how long a crashed
// holder can block the user's refreshes.
func NewRefreshLock(client *redis.Client, ttl time.Duration) *RefreshLock {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RefreshLock{client: client, ttl: ttl, newToken: uuid.NewString}
}

// Acquire takes the user's lock. It returns domain.ErrRefreshInProgress when
// another refresh holds it. The returned release only frees the lock this
// call took; once the TTL has handed the key to someone else it is a no-op.
func (l *RefreshLock) Acquire(ctx context.Context, userID string) (func(), error) {
	key := l.key(userID)
	token := l.newToken()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("refresh lock: %w", err)
	}
	if !ok {
		return nil, domain.ErrRefreshInProgress
	}

	release := func() {
		// Detached from the request so a cancelled caller still frees the lock.
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, nil
}

func (l *RefreshLock) key(userID string) string {
	return fmt.Sprintf("refresh-lock:%s", userID)
}
