package xunique

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// detachedRef 创建不属于任何 Factory 的引用。
func detachedRef[V any](v V) *Ref[V] {
	c := &cell[V]{value: v}
	c.refs.Store(1)
	return &Ref[V]{c: c}
}

func TestRefCloneAndRelease(t *testing.T) {
	var released []int
	f, err := New(DefaultConfig(), WithOnRelease(func(_ Key, v int) {
		released = append(released, v)
	}))
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	key := KeyOf("k")
	r1, err := f.Get(context.Background(), key, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, r1.Value())
	assert.True(t, r1.Key().Equal(key))

	r2, err := r1.Clone()
	require.NoError(t, err)
	assert.True(t, r1.Same(r2))
	assert.NotSame(t, r1, r2)

	require.NoError(t, r1.Release())
	assert.ErrorIs(t, r1.Release(), ErrReleased)
	_, err = r1.Clone()
	assert.ErrorIs(t, err, ErrReleased)

	assert.Empty(t, released, "value still referenced by the clone")
	assert.Equal(t, 1, f.Len())

	require.NoError(t, r2.Release())
	assert.Equal(t, []int{42}, released)
	assert.Equal(t, 0, f.Len())
}

func TestRefSame(t *testing.T) {
	a := detachedRef(1)
	b := detachedRef(1)
	assert.False(t, a.Same(b))
	assert.False(t, a.Same(nil))
	assert.False(t, (*Ref[int])(nil).Same(a))
	assert.True(t, a.Same(a))
}

func TestCellRefCountUnderflowPanics(t *testing.T) {
	r := detachedRef("v")
	require.NoError(t, r.Release())
	assert.PanicsWithValue(t, "xunique: reference count below zero", func() {
		r.c.release()
	})
}

func TestCellTryRetain(t *testing.T) {
	r := detachedRef(1)
	assert.True(t, r.c.tryRetain())
	assert.EqualValues(t, 2, r.c.refs.Load())

	r.c.refs.Store(0)
	assert.False(t, r.c.tryRetain(), "a value being released must not be resurrected")
	assert.False(t, r.c.live())
}

func TestReleaseAllSkipsNilAndReleased(t *testing.T) {
	a, b := detachedRef(1), detachedRef(2)
	require.NoError(t, b.Release())
	assert.NotPanics(t, func() {
		releaseAll([]*Ref[int]{a, nil, b})
	})
	assert.False(t, a.c.live())
}
