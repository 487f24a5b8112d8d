package ratelimit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// The script answers in whole milliseconds and millitokens so nothing is lost
// to redis truncating Lua numbers on return.
const refillScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])

local t = redis.call("TIME")
local now = (t[1] * 1000) + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now
if now > ts then
  tokens = math.min(burst, tokens + ((now - ts) / 1000) * rate)
end

local allowed = 0
local wait = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  wait = math.ceil(((1 - tokens) / rate) * 1000)
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], ARGV[3])

return {allowed, math.floor(tokens * 1000), wait}
`

var (
	errNoBucket   = errors.New("token bucket is not configured")
	errEmptyKey   = errors.New("token bucket key is empty")
	errBadRate    = errors.New("token bucket rate and burst must be positive")
	errShortReply = errors.New("token bucket script returned a short reply")
)

// Decision is the outcome of taking one token.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// TokenBucket keeps one refilling bucket per key in redis.
type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{client: client, script: redis.NewScript(refillScript)}
}

// Take removes one token from key's bucket, refilling at rate tokens per
// second up to burst.
func (b *TokenBucket) Take(ctx context.Context, key string, rate float64, burst int) (Decision, error) {
	switch {
	case b == nil || b.client == nil:
		return Decision{}, errNoBucket
	case key == "":
		return Decision{}, errEmptyKey
	case rate <= 0 || burst <= 0:
		return Decision{}, errBadRate
	}

	ttl := bucketTTL(rate, burst)
	reply, err := b.script.Run(ctx, b.client, []string{key}, rate, burst, ttl.Milliseconds()).Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(reply) < 3 {
		return Decision{}, errShortReply
	}

	return Decision{
		Allowed:    scriptInt(reply[0]) == 1,
		Remaining:  int(scriptInt(reply[1]) / 1000),
		RetryAfter: time.Duration(scriptInt(reply[2])) * time.Millisecond,
	}, nil
}

// bucketTTL keeps an idle bucket around for twice the time it takes to refill.
func bucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	seconds := math.Max(1, math.Ceil(float64(burst)/rate*2))
	return time.Duration(seconds) * time.Second
}

func scriptInt(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	case string:
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
