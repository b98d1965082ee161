package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTTL_GetWithinAndAfterDeadline(t *testing.T) {
	clk := newManualClock()
	s := NewTTL[string](WithClock[string](clk.Now))

	s.Set("a", "one", 5*time.Minute)
	clk.Advance(4 * time.Minute)
	v, ok := s.Get("a")
	require.True(t, ok)
	require.Equal(t, "one", v)

	// reads do not extend the deadline
	v, ok = s.Get("a")
	require.True(t, ok)
	require.Equal(t, "one", v)

	clk.Advance(2 * time.Minute)
	_, ok = s.Get("a")
	require.False(t, ok)
}

func TestTTL_SweepEvictsInDeadlineOrder(t *testing.T) {
	clk := newManualClock()
	var evicted []string
	s := NewTTL[int](
		WithClock[int](clk.Now),
		WithEvictHook[int](func(k string) { evicted = append(evicted, k) }),
	)

	s.Set("late", 3, 3*time.Minute)
	s.Set("early", 1, time.Minute)
	s.Set("forever", 0, 0)

	clk.Advance(2 * time.Minute)
	require.Equal(t, 1, s.Sweep())
	require.Equal(t, []string{"early"}, evicted)

	clk.Advance(2 * time.Minute)
	require.Equal(t, 1, s.Sweep())
	require.Equal(t, []string{"early", "late"}, evicted)
	require.Equal(t, 1, s.Len())
}

func TestTTL_OverwriteIgnoresStaleDeadline(t *testing.T) {
	clk := newManualClock()
	s := NewTTL[string](WithClock[string](clk.Now))

	s.Set("k", "old", time.Minute)
	clk.Advance(30 * time.Second)
	s.Set("k", "new", time.Minute)

	clk.Advance(45 * time.Second)
	require.Equal(t, 0, s.Sweep())
	v, ok := s.Get("k")
	require.True(t, ok)
	require.Equal(t, "new", v)
}

func TestTTL_SetNX(t *testing.T) {
	clk := newManualClock()
	s := NewTTL[string](WithClock[string](clk.Now))

	require.True(t, s.SetNX("k", "first", time.Minute))
	require.False(t, s.SetNX("k", "second", time.Minute))

	clk.Advance(2 * time.Minute)
	require.True(t, s.SetNX("k", "third", time.Minute))
	v, _ := s.Get("k")
	require.Equal(t, "third", v)
}

func TestTTL_DeleteMissingIsNoop(t *testing.T) {
	s := NewTTL[string]()
	s.Delete("missing")
	require.Equal(t, 0, s.Len())
}

func TestTTL_JanitorReclaimsExpired(t *testing.T) {
	s := NewTTL[string]()
	s.Start()
	defer s.Close()

	s.Set("k", "v", 20*time.Millisecond)
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.items) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestTTL_CloseWithoutStart(t *testing.T) {
	s := NewTTL[string]()
	s.Close()
}

func TestTTL_RestartAfterClose(t *testing.T) {
	s := NewTTL[string]()
	s.Start()
	s.Close()
	s.Close()

	s.Start()
	s.Start()
	defer s.Close()

	s.Set("k", "v", 20*time.Millisecond)
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.items) == 0
	}, time.Second, 5*time.Millisecond)
}
