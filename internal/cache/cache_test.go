package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openanatomy/lab/internal/scene"
)

func TestSceneCache_AddAndGet(t *testing.T) {
	c := NewSceneCache()
	require.NotNil(t, c)

	_, ok := c.Get("m1")
	assert.False(t, ok, "expected empty cache to miss")

	s := scene.New()
	c.Add("m1", s)

	got, ok := c.Get("m1")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, c.Len())
}

func TestSceneCache_Remove(t *testing.T) {
	c := NewSceneCache()
	c.Add("m1", scene.New())

	c.Remove("m1")
	_, ok := c.Get("m1")
	assert.False(t, ok)

	// Removing a missing entry is harmless.
	c.Remove("m1")
}

func TestSceneCache_Reset(t *testing.T) {
	c := NewSceneCache()
	c.Add("m1", scene.New())
	c.Add("m2", scene.New())

	c.Reset()
	assert.Equal(t, 0, c.Len())
}

func TestSceneCache_ConcurrentAccess(t *testing.T) {
	c := NewSceneCache()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Add("m1", scene.New())
				c.Get("m1")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, c.Len())
}
