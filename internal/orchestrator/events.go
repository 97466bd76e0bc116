package orchestrator

import (
	"sync"

	"github.com/tad-chat/tad/internal/message"
	"github.com/tad-chat/tad/internal/model"
)

// Callbacks is the set of UI-facing hooks the orchestrator fires.
// Delivery is sequenced through a single consumer goroutine (spec §5:
// "Delivery to the UI callback is sequenced (single-consumer) so the UI
// never observes interleaved partial updates"); every callback here runs
// on that one goroutine, never concurrently with another.
type Callbacks struct {
	OnMessage           func(*message.Message)
	OnChannelJoined      func(channel string)
	OnChannelLeft        func(channel string)
	OnPeerFound          func(nodeID, address string)
	OnPeerLost           func(nodeID string)
	OnPeerStatusChanged  func(nodeID string, status model.PeerStatus)
	OnAppError           func(code message.ErrorCode, detail string)
	OnShutdown           func(err error)
}

// eventQueue is a small unbounded-by-design, ordered job queue: the
// orchestrator's many producer goroutines (fabric read loops, discovery's
// browse loop, gossip callbacks) each enqueue a thunk instead of calling
// the UI callback directly, and a single dispatcher goroutine drains the
// queue in FIFO order.
type eventQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []func()
	closed bool
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *eventQueue) push(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, fn)
	q.cond.Signal()
}

// run drains the queue until close is called, executing each thunk on
// the calling goroutine. Intended to be run as the orchestrator's single
// dispatcher goroutine.
func (q *eventQueue) run() {
	for {
		q.mu.Lock()
		for len(q.items) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.items) == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		fn := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()

		fn()
	}
}

func (q *eventQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
