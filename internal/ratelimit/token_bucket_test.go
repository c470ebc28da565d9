package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestAllowConsumesBurst(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	tb := NewTokenBucket(60, 2, WithClock(clock.now))

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow(), "突发容量用完后应拒绝")
	assert.Equal(t, time.Second, tb.RetryAfter())

	clock.advance(time.Second)
	assert.True(t, tb.Allow(), "每分钟60个请求，1秒后应补充一个令牌")
	assert.False(t, tb.Allow())
}

func TestRefillCappedAtCapacity(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	tb := NewTokenBucket(60, 3, WithClock(clock.now))

	clock.advance(time.Hour)
	for i := 0; i < 3; i++ {
		require.True(t, tb.Allow())
	}
	assert.False(t, tb.Allow(), "长时间空闲后令牌数不应超过容量")
}

func TestDefaultBurst(t *testing.T) {
	assert.Equal(t, 5.0, NewTokenBucket(10, 0).capacity)
	assert.Equal(t, 1.0, NewTokenBucket(1, 0).capacity, "容量至少为1")
}

func TestWaitRespectsContext(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tb.Wait(ctx), context.DeadlineExceeded)
}

func TestWaitReturnsWhenTokenAvailable(t *testing.T) {
	tb := NewTokenBucket(60, 1)
	assert.NoError(t, tb.Wait(context.Background()))
}
