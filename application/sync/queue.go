package sync

import "sync"

// queueState is the worker's explicit state machine: Idle → Draining → Idle.
// The transition happens under the queue lock, so at most one drain loop exists
// per engine and a burst of enqueues collapses into a single run.
type queueState int

const (
	stateIdle queueState = iota
	stateDraining
)

// operationQueue is a FIFO of pending sync operations with the drain-ownership
// guard folded into enqueue/dequeue.
type operationQueue struct {
	mu    sync.Mutex
	items []Operation
	state queueState
	idle  *sync.Cond
}

func newOperationQueue() *operationQueue {
	q := &operationQueue{}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// enqueue appends op and reports whether the caller now owns the drain loop.
// Exactly one enqueue observes the Idle→Draining transition.
func (q *operationQueue) enqueue(op Operation) (startDrain bool, queueLength int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, op)
	if q.state == stateIdle {
		q.state = stateDraining
		return true, len(q.items)
	}
	return false, len(q.items)
}

// dequeue pops the next operation. When the queue is empty it transitions back
// to Idle, atomically with the emptiness check, so a concurrent enqueue either
// sees Draining (and appends) or sees Idle (and starts a new drain loop).
func (q *operationQueue) dequeue() (Operation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		q.state = stateIdle
		q.idle.Broadcast()
		return nil, false
	}
	op := q.items[0]
	q.items = q.items[1:]
	return op, true
}

// length returns the number of queued operations
func (q *operationQueue) length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// isDraining reports whether a drain loop currently owns the queue
func (q *operationQueue) isDraining() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state == stateDraining
}

// waitIdle blocks until the queue returns to Idle. The caller's context is
// handled by the engine; this only waits on the condition.
func (q *operationQueue) waitIdle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.state != stateIdle {
		q.idle.Wait()
	}
}
