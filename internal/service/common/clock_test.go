//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestRealClock_Sleep waits for the duration when not canceled.
func TestRealClock_Sleep(t *testing.T) {
	t.Parallel()

	start := time.Now()
	require.NoError(t, RealClock{}.Sleep(context.Background(), 10*time.Millisecond))
	require.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

// TestRealClock_SleepCanceled returns early with the context error.
func TestRealClock_SleepCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := RealClock{}.Sleep(ctx, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), time.Second)
}

// TestFakeClock advances virtual time and records sleeps.
func TestFakeClock(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 1, 22, 0, 0, 0, time.Local)
	c := NewFakeClock(start)

	var hooked []time.Duration
	c.OnSleep = func(d time.Duration) { hooked = append(hooked, d) }

	require.NoError(t, c.Sleep(context.Background(), 1500*time.Millisecond))
	require.NoError(t, c.Sleep(context.Background(), 30*time.Second))

	require.Equal(t, start.Add(31500*time.Millisecond), c.Now())
	require.Equal(t, []time.Duration{1500 * time.Millisecond, 30 * time.Second}, c.Sleeps())
	require.Equal(t, c.Sleeps(), hooked)
}
