package api

import (
	"sync"

	"courierd/internal/engine"
)

// ProgressCache remembers the latest emitted step per plan so stream
// subscribers that attach late still get a snapshot.
type ProgressCache struct {
	mu sync.Mutex
	m  map[string]engine.Step
}

// NewProgressCache constructs a ProgressCache.
func NewProgressCache() *ProgressCache { return &ProgressCache{m: map[string]engine.Step{}} }

// Upsert stores the latest step for a plan.
func (c *ProgressCache) Upsert(planID string, st engine.Step) {
	if planID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.m[planID]; !ok || st.Step >= cur.Step {
		c.m[planID] = st
	}
}

// Latest returns the most recent step recorded for a plan.
func (c *ProgressCache) Latest(planID string) (engine.Step, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.m[planID]
	return st, ok
}
