package feed

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	id  string
	seq int
}

func (r record) Key() string { return r.id }

func TestBufferOrderAndBound(t *testing.T) {
	for _, capacity := range []int{1, 5, 10, 40} {
		buf := NewBuffer[record](capacity)
		for i := 0; i < capacity*3; i++ {
			buf.Push(record{id: fmt.Sprintf("r%d", i), seq: i})
			require.LessOrEqual(t, buf.Len(), capacity)
		}

		items := buf.Items()
		require.Len(t, items, capacity)
		for i, item := range items {
			// Most recent first.
			assert.Equal(t, capacity*3-1-i, item.seq)
		}
	}
}

func TestBufferReplacesDuplicateIDInPlace(t *testing.T) {
	buf := NewBuffer[record](5)
	buf.Push(record{id: "a", seq: 1})
	buf.Push(record{id: "b", seq: 2})
	buf.Push(record{id: "a", seq: 3})

	items := buf.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].id)
	assert.Equal(t, "a", items[1].id)
	assert.Equal(t, 3, items[1].seq)
}

func TestBufferDuplicateOutsideWindowReinserts(t *testing.T) {
	buf := NewBuffer[record](2)
	buf.Push(record{id: "a", seq: 1})
	buf.Push(record{id: "b", seq: 2})
	buf.Push(record{id: "c", seq: 3}) // evicts "a"
	buf.Push(record{id: "a", seq: 4})

	items := buf.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].id)
	assert.Equal(t, 4, items[0].seq)
	assert.Equal(t, "c", items[1].id)
}

func TestBufferHeadAndClear(t *testing.T) {
	buf := NewBuffer[record](10)
	for i := 0; i < 6; i++ {
		buf.Push(record{id: fmt.Sprintf("r%d", i), seq: i})
	}

	head := buf.Head(3)
	require.Len(t, head, 3)
	assert.Equal(t, 5, head[0].seq)

	assert.Len(t, buf.Head(0), 6)
	assert.Len(t, buf.Head(100), 6)

	buf.Clear()
	assert.Zero(t, buf.Len())
	assert.Empty(t, buf.Items())
}

func TestBufferRejectsNonPositiveCapacity(t *testing.T) {
	assert.Panics(t, func() { NewBuffer[record](0) })
}
