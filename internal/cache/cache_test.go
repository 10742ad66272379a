package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kansa-ai/kansa/internal/model"
)

func rec(orgID uuid.UUID, n int) model.DecisionRecord {
	return model.DecisionRecord{
		ID:        uuid.New(),
		OrgID:     orgID,
		ModelName: fmt.Sprintf("model-%d", n),
	}
}

func TestAppendAndSnapshotOrder(t *testing.T) {
	c := New(5)
	orgID := uuid.New()

	for i := 0; i < 3; i++ {
		c.Append(rec(orgID, i))
	}

	snap := c.Snapshot(orgID)
	require.Len(t, snap, 3)
	for i, d := range snap {
		assert.Equal(t, fmt.Sprintf("model-%d", i), d.ModelName)
	}
}

func TestBoundedEviction(t *testing.T) {
	c := New(1000)
	orgID := uuid.New()

	for i := 0; i < 1500; i++ {
		c.Append(rec(orgID, i))
	}

	assert.Equal(t, 1000, c.Len(orgID))
	snap := c.Snapshot(orgID)
	require.Len(t, snap, 1000)

	// The cache holds the most recent 1000 in insertion order.
	for i, d := range snap {
		assert.Equal(t, fmt.Sprintf("model-%d", 500+i), d.ModelName)
	}
}

func TestOrganizationsIsolated(t *testing.T) {
	c := New(10)
	orgA, orgB := uuid.New(), uuid.New()

	c.Append(rec(orgA, 1))
	c.Append(rec(orgB, 2))
	c.Append(rec(orgB, 3))

	assert.Equal(t, 1, c.Len(orgA))
	assert.Equal(t, 2, c.Len(orgB))
	assert.Nil(t, c.Snapshot(uuid.New()))
}

func TestConcurrentAppends(t *testing.T) {
	c := New(100)
	orgID := uuid.New()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Append(rec(orgID, i))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, c.Len(orgID))
}
