package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	a := Key("check", "openai", "gpt-4o-mini", "claim")
	b := Key("check", "openai", "gpt-4o-mini", "claim")
	assert.Equal(t, a, b)
	assert.Contains(t, a, "credence:v1:check:")

	// Part boundaries matter
	assert.NotEqual(t, Key("x", "ab", "c"), Key("x", "a", "bc"))
	assert.NotEqual(t, Key("generate", "q"), Key("decompose", "q"))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	_, found := c.Get("missing")
	assert.False(t, found)

	require.NoError(t, c.Set("k", []byte("v"), 0))
	val, found := c.Get("k")
	require.True(t, found)
	assert.Equal(t, []byte("v"), val)

	require.NoError(t, c.Delete("k"))
	_, found = c.Get("k")
	assert.False(t, found)

	require.NoError(t, c.Set("a", []byte("1"), 0))
	require.NoError(t, c.Clear())
	_, found = c.Get("a")
	assert.False(t, found)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	require.NoError(t, c.Set("k", []byte("v"), 20*time.Millisecond))

	time.Sleep(40 * time.Millisecond)
	_, found := c.Get("k")
	assert.False(t, found)
}

func TestDiskCache_InMemory(t *testing.T) {
	c, err := NewDiskCache("", time.Hour)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	_, found := c.Get("missing")
	assert.False(t, found)

	require.NoError(t, c.Set("k", []byte("v"), 0))
	val, found := c.Get("k")
	require.True(t, found)
	assert.Equal(t, []byte("v"), val)

	require.NoError(t, c.Delete("k"))
	_, found = c.Get("k")
	assert.False(t, found)
}

func TestDiskCache_Persists(t *testing.T) {
	dir := t.TempDir()

	c, err := NewDiskCache(dir, time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Set("k", []byte("persisted"), 0))
	require.NoError(t, c.Close())

	reopened, err := NewDiskCache(dir, time.Hour)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	val, found := reopened.Get("k")
	require.True(t, found)
	assert.Equal(t, []byte("persisted"), val)
}

func TestDiskCache_Clear(t *testing.T) {
	c, err := NewDiskCache("", time.Hour)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	require.NoError(t, c.Set("a", []byte("1"), 0))
	require.NoError(t, c.Set("b", []byte("2"), 0))
	require.NoError(t, c.Clear())

	_, found := c.Get("a")
	assert.False(t, found)
}

func TestLayeredCache_PromotesFromDisk(t *testing.T) {
	c, err := NewLayeredCache(time.Minute, "", time.Hour)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	require.NoError(t, c.disk.Set("k", []byte("v"), 0))

	_, found := c.memory.Get("k")
	assert.False(t, found)

	val, found := c.Get("k")
	require.True(t, found)
	assert.Equal(t, []byte("v"), val)

	val, found = c.memory.Get("k")
	require.True(t, found, "disk hit should be promoted to memory")
	assert.Equal(t, []byte("v"), val)
}

func TestLayeredCache_SetDeleteClear(t *testing.T) {
	c, err := NewLayeredCache(time.Minute, "", time.Hour)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	require.NoError(t, c.Set("k", []byte("v"), 0))
	_, found := c.disk.Get("k")
	assert.True(t, found)

	require.NoError(t, c.Delete("k"))
	_, found = c.Get("k")
	assert.False(t, found)

	require.NoError(t, c.Set("a", []byte("1"), 0))
	require.NoError(t, c.Clear())
	_, found = c.Get("a")
	assert.False(t, found)
}
