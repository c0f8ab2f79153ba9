package smq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueDispatcherRunsInOrder(t *testing.T) {
	q := NewQueueDispatcher(4)

	var got []int
	for i := range 10 {
		q.Dispatch(func() { got = append(got, i) })
	}
	q.Close()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestQueueDispatcherDropsAfterClose(t *testing.T) {
	q := NewQueueDispatcher(1)
	q.Close()

	called := false
	q.Dispatch(func() { called = true })
	q.Close()

	assert.False(t, called)
}

func TestDispatcherFunc(t *testing.T) {
	var calls int
	d := DispatcherFunc(func(fn func()) {
		calls++
		fn()
	})

	ran := false
	d.Dispatch(func() { ran = true })

	assert.True(t, ran)
	assert.Equal(t, 1, calls)
}
