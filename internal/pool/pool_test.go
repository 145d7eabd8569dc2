package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlloc(t *testing.T) {
	p := New[int](4)

	assert.Equal(t, 4, p.Cap())
	assert.Equal(t, 0, p.Used())
	assert.Equal(t, 4, p.Avail())

	for i := 0; i < 4; i++ {
		idx, ptr, ok := p.Alloc(i)
		require.True(t, ok)
		assert.Equal(t, i+1, p.Used())
		assert.Equal(t, i, *ptr)
		assert.Equal(t, i, *p.At(idx))
	}

	assert.Equal(t, 0, p.Avail())
	_, _, ok := p.Alloc(10)
	assert.False(t, ok)
	assert.Equal(t, 0, p.Avail())
}

func TestFreeAndReuse(t *testing.T) {
	p := New[int](4)
	var inUse []int

	for i := 0; i < 20; i++ {
		idx, ptr, ok := p.Alloc(i)
		require.True(t, ok)
		require.Less(t, idx, 4)
		assert.Equal(t, i, *ptr)

		inUse = append(inUse, idx)

		if p.Avail() == 0 {
			p.Free(inUse[0])
			inUse = inUse[1:]
			assert.Equal(t, 1, p.Avail())
		}
	}
}

func TestFreeByPointer(t *testing.T) {
	p := New[int](4)
	var ptrs []*int

	for i := 0; i < 20; i++ {
		idx, ptr, ok := p.Alloc(i)
		require.True(t, ok)
		require.Less(t, idx, 4)

		ptrs = append(ptrs, ptr)

		if p.Avail() == 0 {
			p.FreeByPointer(ptrs[0])
			ptrs = ptrs[1:]
			assert.Equal(t, 1, p.Avail())
		}
	}
}

func TestFreeAlreadyFreePanics(t *testing.T) {
	p := New[int](4)
	idx, _, ok := p.Alloc(0)
	require.True(t, ok)

	p.Free(idx)
	assert.Panics(t, func() { p.Free(idx) })
}

func TestFreeOutOfRangePanics(t *testing.T) {
	p := New[int](4)
	idx, _, ok := p.Alloc(0)
	require.True(t, ok)

	assert.Panics(t, func() { p.Free(idx + 1) })
}

func TestAccessFreeIndexPanics(t *testing.T) {
	p := New[int](4)
	assert.Panics(t, func() { p.At(0) })
}

func TestAccessOutOfRangeIndexPanics(t *testing.T) {
	p := New[int](4)
	idx, _, ok := p.Alloc(0)
	require.True(t, ok)

	assert.Panics(t, func() { p.At(idx + 1) })
}

func TestFreeByForeignPointerPanics(t *testing.T) {
	p := New[int](4)
	foo := 1

	_, _, ok := p.Alloc(0)
	require.True(t, ok)

	assert.Panics(t, func() { p.FreeByPointer(&foo) })
}
