package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolNeverReturnsZero(t *testing.T) {
	p := NewEntityPool()
	id := p.Create()
	assert.False(t, id.IsZero())
	assert.Equal(t, uint32(1), id.Index())
	assert.False(t, p.Alive(0))
}

func TestPoolRecyclesWithNewGeneration(t *testing.T) {
	p := NewEntityPool()
	a := p.Create()
	require.True(t, p.Destroy(a))
	assert.False(t, p.Destroy(a), "stale id destroyed twice")

	b := p.Create()
	assert.Equal(t, a.Index(), b.Index())
	assert.NotEqual(t, a, b)
	assert.False(t, p.Alive(a))
	assert.True(t, p.Alive(b))
	assert.Equal(t, 1, p.Len())
}

func TestWorldDeferredDestroy(t *testing.T) {
	w := NewWorld()
	names := NewStore[string]()
	w.Registry().Register(names)

	id := w.CreateEntity()
	name := "box"
	names.Set(id, &name)

	require.True(t, w.MarkForDestruction(id))
	assert.False(t, w.MarkForDestruction(id), "queued twice")
	assert.True(t, w.Alive(id), "destroyed before flush")
	assert.True(t, w.Pending(id))

	assert.Equal(t, 1, w.FlushDestroyQueue())
	assert.False(t, w.Alive(id))
	assert.False(t, w.Pending(id))
	assert.False(t, names.Has(id))
	assert.False(t, w.MarkForDestruction(id))
}
