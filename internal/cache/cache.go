// Package cache keeps decoded scenes in memory so switching back to a
// recently viewed model skips the asset download and GLB decode.
package cache

import (
	"sync"

	"github.com/openanatomy/lab/internal/scene"
)

// SceneCache caches normalized scenes by model id. Decoding a large GLB
// dominates model switch latency, so hits are returned as-is; scenes are
// treated as immutable once cached.
type SceneCache struct {
	m      sync.Mutex
	scenes map[string]*scene.Scene
}

func NewSceneCache() *SceneCache {
	return &SceneCache{
		scenes: make(map[string]*scene.Scene),
	}
}

// Get returns the cached scene for a model, if present.
func (c *SceneCache) Get(modelID string) (*scene.Scene, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	s, ok := c.scenes[modelID]
	return s, ok
}

// Add stores a decoded scene for a model, replacing any previous entry.
func (c *SceneCache) Add(modelID string, s *scene.Scene) {
	c.m.Lock()
	defer c.m.Unlock()
	c.scenes[modelID] = s
}

// Remove drops a model's cached scene, used when the model is deleted or
// its asset replaced.
func (c *SceneCache) Remove(modelID string) {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.scenes, modelID)
}

// Reset drops every cached scene.
func (c *SceneCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.scenes = make(map[string]*scene.Scene)
}

// Len returns the number of cached scenes.
func (c *SceneCache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.scenes)
}
