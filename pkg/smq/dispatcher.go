package smq

import "sync"

// Dispatcher runs callbacks on behalf of the client. Implementations
// typically hand fn to an application event loop; the client never
// requires fn to run before Dispatch returns.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(fn func())

// Dispatch calls f(fn).
func (f DispatcherFunc) Dispatch(fn func()) {
	f(fn)
}

// DirectDispatcher runs callbacks synchronously on the client goroutine
// that produced them. Callbacks must not block.
type DirectDispatcher struct{}

// Dispatch runs fn immediately.
func (DirectDispatcher) Dispatch(fn func()) {
	fn()
}

// QueueDispatcher runs callbacks in order on a single dedicated goroutine.
type QueueDispatcher struct {
	queue chan func()
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewQueueDispatcher starts a dispatcher with the given queue capacity.
// Dispatch blocks while the queue is full.
func NewQueueDispatcher(capacity int) *QueueDispatcher {
	if capacity < 1 {
		capacity = 1
	}
	q := &QueueDispatcher{
		queue: make(chan func(), capacity),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *QueueDispatcher) run() {
	defer close(q.done)
	for fn := range q.queue {
		fn()
	}
}

// Dispatch queues fn. Callbacks dispatched after Close are dropped.
func (q *QueueDispatcher) Dispatch(fn func()) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}
	q.queue <- fn
}

// Close runs the remaining callbacks and stops the goroutine.
func (q *QueueDispatcher) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.queue)
	}
	q.mu.Unlock()
	<-q.done
}
