package circuit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func trip(b *Breaker, n int) {
	for i := 0; i < n; i++ {
		b.RecordFailure()
	}
}

func TestNew_Defaults(t *testing.T) {
	b := New("idme")
	assert.Equal(t, "idme", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, "closed", b.State().String())
	assert.True(t, b.Allow())

	trip(b, 4)
	assert.False(t, b.IsOpen(), "five consecutive failures are needed by default")
	trip(b, 1)
	assert.True(t, b.IsOpen())
	assert.Equal(t, "open", b.State().String())
}

func TestRecordFailure_ReportsOpeningOnce(t *testing.T) {
	b := New("resend", WithFailureThreshold(2))

	fallback, change := b.RecordFailure()
	assert.False(t, fallback)
	assert.Equal(t, StateChange{}, change)

	fallback, change = b.RecordFailure()
	assert.True(t, fallback)
	assert.True(t, change.Opened)

	fallback, change = b.RecordFailure()
	assert.True(t, fallback, "open circuit keeps routing to the fallback")
	assert.False(t, change.Opened, "the transition is reported only once")
}

func TestRecordSuccess_InterruptsFailureStreak(t *testing.T) {
	b := New("ratelimit-redis", WithFailureThreshold(3))
	trip(b, 2)
	b.RecordSuccess()
	trip(b, 2)
	assert.False(t, b.IsOpen())
	trip(b, 1)
	assert.True(t, b.IsOpen())
}

func TestRecovery(t *testing.T) {
	tests := map[string]struct {
		successThreshold int
		outcomes         []bool
		wantOpen         bool
	}{
		"single success below threshold": {successThreshold: 2, outcomes: []bool{true}, wantOpen: true},
		"enough successes close":          {successThreshold: 2, outcomes: []bool{true, true}, wantOpen: false},
		"failure restarts the count":      {successThreshold: 2, outcomes: []bool{true, false, true}, wantOpen: true},
		"failure then two successes":      {successThreshold: 2, outcomes: []bool{true, false, true, true}, wantOpen: false},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			b := New("idme", WithFailureThreshold(1), WithSuccessThreshold(tc.successThreshold))
			trip(b, 1)
			require.True(t, b.IsOpen())
			for _, ok := range tc.outcomes {
				if ok {
					b.RecordSuccess()
				} else {
					b.RecordFailure()
				}
			}
			assert.Equal(t, tc.wantOpen, b.IsOpen())
		})
	}
}

func TestAllow_OneProbePerCooldown(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	b := New("idme", WithFailureThreshold(1), WithCooldown(30*time.Second), WithClock(clock.Now))
	trip(b, 1)

	assert.False(t, b.Allow(), "no probe right after opening")
	clock.Advance(29 * time.Second)
	assert.False(t, b.Allow())
	clock.Advance(time.Second)
	assert.True(t, b.Allow(), "probe once the cooldown elapses")
	assert.False(t, b.Allow(), "only one probe per window")
	clock.Advance(30 * time.Second)
	assert.True(t, b.Allow())
}

func TestReset(t *testing.T) {
	b := New("resend", WithFailureThreshold(1))
	trip(b, 1)
	require.True(t, b.IsOpen())
	b.Reset()
	assert.False(t, b.IsOpen())
	assert.True(t, b.Allow())
}

func TestOptions_IgnoreNonPositive(t *testing.T) {
	b := New("idme", WithFailureThreshold(0), WithSuccessThreshold(-1), WithCooldown(0))
	assert.Equal(t, 5, b.failureThreshold)
	assert.Equal(t, 2, b.successThreshold)
	assert.Equal(t, 30*time.Second, b.cooldown)
}

func TestBreaker_ConcurrentUse(t *testing.T) {
	b := New("idme", WithFailureThreshold(1000))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				b.RecordFailure()
			} else {
				b.RecordSuccess()
			}
			_ = b.Allow()
		}(i)
	}
	wg.Wait()
	assert.False(t, b.IsOpen())
}
