// Package cache holds the in-memory per-organization decision cache used to
// accelerate dashboard reads. The persistent store stays authoritative: the
// cache may be empty or stale after a restart without correctness loss.
package cache

import (
	"sync"

	"github.com/google/uuid"

	"github.com/kansa-ai/kansa/internal/model"
)

// DecisionCache keeps the most recent decisions per organization in a
// bounded ring buffer. Appends within one organization are serialized by a
// per-organization lock; the outer lock only guards the org map.
type DecisionCache struct {
	mu    sync.RWMutex
	orgs  map[uuid.UUID]*ring
	limit int
}

// New creates a cache holding at most limit decisions per organization.
func New(limit int) *DecisionCache {
	if limit <= 0 {
		limit = 1000
	}
	return &DecisionCache{
		orgs:  make(map[uuid.UUID]*ring),
		limit: limit,
	}
}

// Append adds a decision to its organization's cache, evicting the oldest
// entry once the bound is reached.
func (c *DecisionCache) Append(rec model.DecisionRecord) {
	c.mu.Lock()
	r, ok := c.orgs[rec.OrgID]
	if !ok {
		r = &ring{entries: make([]model.DecisionRecord, 0, c.limit), limit: c.limit}
		c.orgs[rec.OrgID] = r
	}
	c.mu.Unlock()

	r.append(rec)
}

// Snapshot returns the organization's cached decisions in insertion order.
// The returned slice is a copy and safe to retain.
func (c *DecisionCache) Snapshot(orgID uuid.UUID) []model.DecisionRecord {
	c.mu.RLock()
	r, ok := c.orgs[orgID]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	return r.snapshot()
}

// Len returns the number of cached decisions for an organization.
func (c *DecisionCache) Len(orgID uuid.UUID) int {
	c.mu.RLock()
	r, ok := c.orgs[orgID]
	c.mu.RUnlock()
	if !ok {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// ring is a fixed-capacity insertion-ordered buffer. Once full, head marks
// the oldest entry and new appends overwrite in place.
type ring struct {
	mu      sync.Mutex
	entries []model.DecisionRecord
	head    int
	limit   int
}

func (r *ring) append(rec model.DecisionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) < r.limit {
		r.entries = append(r.entries, rec)
		return
	}
	r.entries[r.head] = rec
	r.head = (r.head + 1) % r.limit
}

func (r *ring) snapshot() []model.DecisionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.DecisionRecord, 0, len(r.entries))
	out = append(out, r.entries[r.head:]...)
	out = append(out, r.entries[:r.head]...)
	return out
}
