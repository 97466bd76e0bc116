package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueueDispatchesInFIFOOrder(t *testing.T) {
	q := newEventQueue()
	var order []int
	done := make(chan struct{})

	go q.run()

	for i := 0; i < 5; i++ {
		i := i
		q.push(func() { order = append(order, i) })
	}
	q.push(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queue did not drain in time")
	}
	q.close()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestEventQueueDropsPushesAfterClose(t *testing.T) {
	q := newEventQueue()
	q.close()

	ran := false
	q.push(func() { ran = true })

	go q.run()
	time.Sleep(10 * time.Millisecond)
	assert.False(t, ran)
}

func TestNodeStopIsIdempotent(t *testing.T) {
	n := newTestNode(t)
	require.NoError(t, n.Stop())
	assert.ErrorIs(t, n.Stop(), ErrClosed)
}
