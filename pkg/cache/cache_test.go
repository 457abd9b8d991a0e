package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLRUCache(t *testing.T) {
	c := NewLRUCache[string, int](2, "test")

	c.Set("a", 1)
	c.Set("b", 2)
	v, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	// "b" is the least recently used entry now
	c.Set("c", 3)
	_, ok = c.Get("b")
	require.False(t, ok)
	require.Equal(t, 2, c.Len())

	c.Delete("a")
	_, ok = c.Get("a")
	require.False(t, ok)
}
