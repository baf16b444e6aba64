package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetExpiresLazily(t *testing.T) {
	s := New()
	now := time.Now()
	s.now = func() time.Time { return now }

	s.Set("k", "v", 30*time.Second)

	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	now = now.Add(29 * time.Second)
	_, ok = s.Get("k")
	assert.True(t, ok, "entry inside TTL must hit")

	now = now.Add(time.Second)
	_, ok = s.Get("k")
	assert.False(t, ok, "entry at TTL must miss")
	assert.Equal(t, 0, s.Len(), "expired entry is deleted on read")
}

func TestInvalidatePrefixMatchesSubstring(t *testing.T) {
	s := New()
	s.Set("user_buds_7", 1, time.Minute)
	s.Set("cached_user_buds_7_page2", 2, time.Minute)
	s.Set("user_buds_71", 3, time.Minute)
	s.Set("bud_7", 4, time.Minute)

	s.InvalidatePrefix("user_buds_7")

	_, ok := s.Get("bud_7")
	assert.True(t, ok)
	assert.Equal(t, 1, s.Len(), "every key containing the substring is gone")
}

func TestSetSweepsExpiredPastThreshold(t *testing.T) {
	s := New()
	now := time.Now()
	s.now = func() time.Time { return now }

	for i := 0; i < evictThreshold; i++ {
		s.Set(fmt.Sprintf("old_%d", i), i, time.Second)
	}
	now = now.Add(2 * time.Second) // everything above is now expired

	s.Set("fresh", 1, time.Minute)
	assert.Equal(t, evictThreshold+1-evictBatch, s.Len(),
		"one Set past the threshold sweeps a bounded batch")

	s.Set("fresh2", 2, time.Minute) // back under the threshold, no sweep
	assert.Equal(t, evictThreshold+2-evictBatch, s.Len())
}

func TestClear(t *testing.T) {
	s := New()
	s.Set("a", 1, time.Minute)
	s.Set("b", 2, time.Minute)
	s.Clear()
	assert.Equal(t, 0, s.Len())
}
