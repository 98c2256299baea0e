package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLimiter_Burst(t *testing.T) {
	limiter := NewLimiter("binance", 60)
	assert.Equal(t, "binance", limiter.Name())

	// 60/min gives a burst of 6
	for i := 0; i < 6; i++ {
		assert.True(t, limiter.Allow(), "request %d", i)
	}
	assert.False(t, limiter.Allow())
}

func TestNewLimiter_ClampsBurst(t *testing.T) {
	assert.Equal(t, 1, NewLimiter("slow", 0).burst)
	assert.Equal(t, 1, NewLimiter("slow", 5).burst)
	assert.Equal(t, maxBurst, NewLimiter("fast", 6000).burst)
}

func TestWaitN_ClampsHeavyWeight(t *testing.T) {
	limiter := NewLimiter("binance", 1200)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// weight above the burst would otherwise fail immediately
	require.NoError(t, limiter.WaitN(ctx, 50))
}

func TestWait_ContextCancelled(t *testing.T) {
	limiter := NewLimiter("slow", 1)
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.Error(t, limiter.Wait(ctx))
}

func TestBackoff(t *testing.T) {
	limiter := NewLimiter("binance", 60)
	assert.Equal(t, minBackoff, limiter.Backoff())

	assert.Equal(t, 2*minBackoff, limiter.SignalRateLimited())
	assert.Equal(t, 4*minBackoff, limiter.SignalRateLimited())

	for i := 0; i < 20; i++ {
		limiter.SignalRateLimited()
	}
	assert.Equal(t, maxBackoff, limiter.Backoff())

	limiter.ResetBackoff()
	assert.Equal(t, minBackoff, limiter.Backoff())
}

func TestSleep_HonorsContext(t *testing.T) {
	limiter := NewLimiter("binance", 60)
	for i := 0; i < 10; i++ {
		limiter.SignalRateLimited()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	assert.ErrorIs(t, limiter.Sleep(ctx), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSet(t *testing.T) {
	set := NewSet()

	a := set.Ensure("binance", 1200)
	b := set.Ensure("binance", 10)
	assert.Same(t, a, b)
	assert.Same(t, a, set.Get("binance"))
	assert.Nil(t, set.Get("yahoo"))

	ctx := context.Background()
	assert.NoError(t, set.Wait(ctx, "binance"))
	assert.NoError(t, set.Wait(ctx, "unknown"))
}
