package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterReplacesPrevious(t *testing.T) {
	r := NewRegistry()
	first := newFakeHandle("1")
	second := newFakeHandle("1")

	assert.Nil(t, r.Register("1", first))
	prev := r.Register("1", second)
	require.NotNil(t, prev)
	assert.Equal(t, first.ID(), prev.ID())

	cur, ok := r.Lookup("1")
	require.True(t, ok)
	assert.Equal(t, second.ID(), cur.ID())
	assert.Equal(t, 1, r.Len())
}

func TestRegistryRegisterSameHandleReturnsNil(t *testing.T) {
	r := NewRegistry()
	h := newFakeHandle("1")
	r.Register("1", h)
	assert.Nil(t, r.Register("1", h))
}

func TestRegistryUnregisterHandleOnlyRemovesCurrent(t *testing.T) {
	r := NewRegistry()
	stale := newFakeHandle("1")
	fresh := newFakeHandle("1")
	r.Register("1", stale)
	r.Register("1", fresh)

	assert.False(t, r.UnregisterHandle("1", stale))
	_, ok := r.Lookup("1")
	assert.True(t, ok)

	assert.True(t, r.UnregisterHandle("1", fresh))
	_, ok = r.Lookup("1")
	assert.False(t, ok)
}

func TestRegistryUnregisterMissingIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Unregister("42")
	assert.Equal(t, 0, r.Len())
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	h1 := newFakeHandle("1")
	h3 := newFakeHandle("3")
	r.Register("1", h1)
	r.Register("3", h3)

	got := r.Resolve([]UserID{"3", "2", "1", "3"})
	require.Len(t, got, 2)
	assert.Equal(t, h3.ID(), got[0].ID())
	assert.Equal(t, h1.ID(), got[1].ID())

	assert.Empty(t, r.Resolve(nil))
	assert.Empty(t, r.Resolve([]UserID{"9"}))
}
