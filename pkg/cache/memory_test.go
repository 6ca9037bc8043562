package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheSetGetDelete(t *testing.T) {
	c := NewMemoryCache()

	_, err := c.Get("missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set("theme", "dark", 0))
	v, err := c.Get("theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", v)

	require.NoError(t, c.Set("blob", []byte(`{"a":1}`), 0))
	v, err = c.Get("blob")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v)

	require.NoError(t, c.Delete("theme"))
	_, err = c.Get("theme")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemoryCacheRejectsUnsupportedValues(t *testing.T) {
	c := NewMemoryCache()
	assert.ErrorIs(t, c.Set("n", 42, 0), ErrUnsupportedValue)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	require.NoError(t, c.Set("k", "v", 10*time.Millisecond))

	v, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	time.Sleep(20 * time.Millisecond)
	_, err = c.Get("k")
	assert.ErrorIs(t, err, ErrMiss)
}
