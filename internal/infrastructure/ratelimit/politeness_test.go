package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoliteness_FirstRequestIsImmediate(t *testing.T) {
	p := NewPoliteness(time.Hour, 0)

	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestPoliteness_SpacesConsecutiveRequests(t *testing.T) {
	interval := 40 * time.Millisecond
	p := NewPoliteness(interval, 0)
	ctx := context.Background()

	var stamps []time.Time
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Wait(ctx))
		stamps = append(stamps, time.Now())
	}

	for i := 1; i < len(stamps); i++ {
		assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), interval-2*time.Millisecond,
			"gap %d shorter than the interval", i)
	}
}

func TestPoliteness_AddsJitter(t *testing.T) {
	p := NewPoliteness(10*time.Millisecond, 50*time.Millisecond)
	p.jitterFn = func(max time.Duration) time.Duration { return max - time.Millisecond }
	ctx := context.Background()

	require.NoError(t, p.Wait(ctx))
	start := time.Now()
	require.NoError(t, p.Wait(ctx))

	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}

func TestPoliteness_ConcurrentCallersAreSerialized(t *testing.T) {
	interval := 20 * time.Millisecond
	p := NewPoliteness(interval, 0)
	ctx := context.Background()

	var (
		mu     sync.Mutex
		stamps []time.Time
		wg     sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Wait(ctx))
			mu.Lock()
			stamps = append(stamps, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, stamps, 4)
	first, last := stamps[0], stamps[0]
	for _, s := range stamps {
		if s.Before(first) {
			first = s
		}
		if s.After(last) {
			last = s
		}
	}
	assert.GreaterOrEqual(t, last.Sub(first), 3*interval-5*time.Millisecond)
}

func TestPoliteness_RespectsContext(t *testing.T) {
	p := NewPoliteness(time.Hour, 0)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPoliteness_IndependentInstances(t *testing.T) {
	slow := NewPoliteness(time.Hour, 0)
	fast := NewPoliteness(0, 0)
	ctx := context.Background()

	require.NoError(t, slow.Wait(ctx))

	// A busy limiter must not delay another adapter's limiter
	start := time.Now()
	require.NoError(t, fast.Wait(ctx))
	require.NoError(t, fast.Wait(ctx))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestPoliteness_CancelledWaitGivesSlotBack(t *testing.T) {
	interval := 60 * time.Millisecond
	p := NewPoliteness(interval, 0)
	require.NoError(t, p.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.DeadlineExceeded)

	// The cancelled call must not push the next request a further interval out
	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.Less(t, time.Since(start), interval+30*time.Millisecond)
}

func TestPoliteness_NoJitterOnImmediateRequests(t *testing.T) {
	p := NewPoliteness(10*time.Millisecond, time.Hour)
	p.jitterFn = func(max time.Duration) time.Duration {
		t.Fatalf("jitter drawn for a request that did not wait")
		return 0
	}

	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}
