package cache

import (
	"testing"
	"time"

	"github.com/smallbiznis/duekeeper/internal/clock"
	"github.com/stretchr/testify/assert"
)

func TestCacheExpiresByTTL(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	c := New[string, int](clk, time.Minute)

	c.Set("a", 42)

	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 42, got)

	clk.Advance(59 * time.Second)
	_, ok = c.Get("a")
	assert.True(t, ok)

	clk.Advance(2 * time.Second)
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestCacheDeleteAndPurge(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	c := New[string, int](clk, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Purge()
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestCacheZeroTTLDisables(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	c := New[string, int](clk, 0)

	c.Set("a", 1)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache[string, int]

	c.Set("a", 1)
	c.Delete("a")
	c.Purge()
	_, ok := c.Get("a")
	assert.False(t, ok)
}
