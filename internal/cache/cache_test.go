package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	src := []byte("functions: []\n")
	key := Key(src, "smt=false")

	t.Run("NotFound", func(t *testing.T) {
		_, found := c.Get(Key([]byte("other")))
		assert.False(t, found)
	})

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, c.Set(key, "(assert true)\n"))
		out, found := c.Get(key)
		assert.True(t, found)
		assert.Equal(t, "(assert true)\n", out)
	})

	t.Run("Persisted", func(t *testing.T) {
		reopened, err := New(dir)
		require.NoError(t, err)
		out, found := reopened.Get(key)
		assert.True(t, found)
		assert.Equal(t, "(assert true)\n", out)
	})

	t.Run("Expired", func(t *testing.T) {
		c.SetMaxAge(-time.Second)
		_, found := c.Get(key)
		assert.False(t, found)
		c.SetMaxAge(DefaultMaxAge)
	})

	t.Run("InvalidateAll", func(t *testing.T) {
		require.NoError(t, c.Set(key, "x"))
		require.NoError(t, c.InvalidateAll())
		assert.Equal(t, 0, c.Len())
	})
}

func TestKey(t *testing.T) {
	src := []byte("x")
	assert.Equal(t, Key(src, "a"), Key(src, "a"))
	assert.NotEqual(t, Key(src, "a"), Key(src, "b"))
	assert.NotEqual(t, Key(src, "ab", "c"), Key(src, "a", "bc"))
	assert.NotEqual(t, Key(src), Key([]byte("y")))
}
