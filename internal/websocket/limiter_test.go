package websocket

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalConnectionLimiter(t *testing.T) {
	l := NewGlobalConnectionLimiter(2)

	assert.True(t, l.Acquire())
	assert.True(t, l.Acquire())
	assert.False(t, l.Acquire(), "third connection exceeds the cap")

	l.Release()
	assert.True(t, l.Acquire())
	assert.Equal(t, int64(2), l.Current())
}

func TestGlobalConnectionLimiterConcurrent(t *testing.T) {
	l := NewGlobalConnectionLimiter(100)

	var wg sync.WaitGroup
	acquired := make(chan bool, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acquired <- l.Acquire()
		}()
	}
	wg.Wait()
	close(acquired)

	granted := 0
	for ok := range acquired {
		if ok {
			granted++
		}
	}
	assert.Equal(t, 100, granted)
	assert.Equal(t, int64(100), l.Current())
}

func TestIPConnectionLimiter(t *testing.T) {
	l := NewIPConnectionLimiter(2)

	assert.True(t, l.Acquire("1.2.3.4"))
	assert.True(t, l.Acquire("1.2.3.4"))
	assert.False(t, l.Acquire("1.2.3.4"))

	// Other IPs are unaffected.
	assert.True(t, l.Acquire("5.6.7.8"))

	l.Release("1.2.3.4")
	assert.True(t, l.Acquire("1.2.3.4"))

	// Releasing an unknown IP must not underflow.
	l.Release("9.9.9.9")
	assert.True(t, l.Acquire("9.9.9.9"))
}

func TestConnectionRateLimiter(t *testing.T) {
	l := NewConnectionRateLimiter(1, 2)

	assert.True(t, l.Allow("1.2.3.4"))
	assert.True(t, l.Allow("1.2.3.4"))
	assert.False(t, l.Allow("1.2.3.4"), "burst exhausted")

	// Separate buckets per IP.
	assert.True(t, l.Allow("5.6.7.8"))
}

func TestConnectionLimitsReportsReason(t *testing.T) {
	l := NewConnectionLimits(1, 1, 100, 100)

	ok, reason := l.Acquire("1.2.3.4")
	require.True(t, ok)
	assert.Empty(t, string(reason))

	ok, reason = l.Acquire("5.6.7.8")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonGlobal, reason)

	l.Release("1.2.3.4")

	ok, _ = l.Acquire("1.2.3.4")
	require.True(t, ok)
	ok, _ = l.Acquire("1.2.3.4")
	assert.False(t, ok, "second slot for same IP denied")
}

func TestConnectionLimitsPerIPReleasesGlobalSlot(t *testing.T) {
	l := NewConnectionLimits(2, 1, 100, 100)

	ok, _ := l.Acquire("1.2.3.4")
	require.True(t, ok)

	// Per-IP rejection must hand the global slot back.
	ok, reason := l.Acquire("1.2.3.4")
	require.False(t, ok)
	assert.Equal(t, LimitReasonPerIP, reason)

	ok, _ = l.Acquire("5.6.7.8")
	assert.True(t, ok)
	ok, _ = l.Acquire("9.9.9.9")
	assert.False(t, ok, "global cap of 2 still enforced")
}

func TestConnectionLimitsRateReason(t *testing.T) {
	l := NewConnectionLimits(100, 100, 1, 1)

	ok, _ := l.Acquire("1.2.3.4")
	require.True(t, ok)

	ok, reason := l.Acquire("1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonRate, reason)
}
