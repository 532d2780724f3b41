package checkin

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript returns 1 when the nonce was live and is now used, 2 when
// it was used before and 0 when it is not the member's live token.
var consumeScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
  return 2
end
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SET", KEYS[2], "1", "PX", ARGV[2])
return 1
`)

type redisStore struct {
	rdb redis.Cmdable
}

func NewRedisStore(rdb redis.Cmdable) Store {
	return &redisStore{rdb: rdb}
}

func liveKey(memberID int64) string {
	return fmt.Sprintf("checkin:live:%d", memberID)
}

func usedKey(nonce string) string {
	return "checkin:used:" + nonce
}

func keepFor(t Token, now time.Time) time.Duration {
	d := t.ValidUntil.Sub(now) + retention
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

func (s *redisStore) Put(ctx context.Context, t Token, now time.Time) error {
	if err := s.rdb.Set(ctx, liveKey(t.MemberID), t.Nonce, keepFor(t, now)).Err(); err != nil {
		return fmt.Errorf("store check-in token: %w", err)
	}
	return nil
}

func (s *redisStore) Consume(ctx context.Context, t Token, now time.Time) error {
	keys := []string{liveKey(t.MemberID), usedKey(t.Nonce)}
	res, err := consumeScript.Run(ctx, s.rdb, keys, t.Nonce, keepFor(t, now).Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("consume check-in token: %w", err)
	}
	switch res {
	case 1:
		return nil
	case 2:
		return ErrTokenAlreadyUsed
	default:
		return ErrTokenUnknown
	}
}
