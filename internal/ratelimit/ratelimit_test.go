package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, time.Second, bucketTTL(0, 3))
	assert.Equal(t, 12*time.Second, bucketTTL(0.5, 3))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}

func TestScriptInt(t *testing.T) {
	assert.Equal(t, int64(1), scriptInt(int64(1)))
	assert.Equal(t, int64(2), scriptInt(2.9))
	assert.Equal(t, int64(1500), scriptInt("1500"))
	assert.Zero(t, scriptInt("x"))
	assert.Zero(t, scriptInt(nil))
}

func TestTakeRejectsBadInput(t *testing.T) {
	var b *TokenBucket
	_, err := b.Take(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, errNoBucket)
}

func TestNilLimiterAllows(t *testing.T) {
	var l *EvaluateLimiter
	assert.False(t, l.Enabled())

	res, err := l.Allow(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestEvaluateLimiterRate(t *testing.T) {
	l := newEvaluateLimiter(nil, 10*time.Second, 3)
	assert.InDelta(t, 0.1, l.rate, 1e-9)
	assert.False(t, l.Enabled())
}
