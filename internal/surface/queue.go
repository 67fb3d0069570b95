package surface

import "time"

// Pending is a translated OS event waiting to be handed to a trampoline.
type Pending struct {
	Kind Kind
	Inv  Invocation
}

// Queue buffers translated events for one window between pumps. Producers
// are driver goroutines reading the platform; the consumer is whichever
// goroutine calls Render or AwaitEvents for the window.
type Queue struct {
	events chan Pending
	done   chan struct{}
}

// NewQueue returns a queue holding up to size events.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{
		events: make(chan Pending, size),
		done:   make(chan struct{}),
	}
}

// Push enqueues p without blocking. It reports false when the queue is full
// or shut down; the event is dropped.
func (q *Queue) Push(p Pending) bool {
	select {
	case <-q.done:
		return false
	default:
	}
	select {
	case q.events <- p:
		return true
	default:
		return false
	}
}

// Drain invokes cb for every queued event and returns how many it handled.
func (q *Queue) Drain(cb *Callbacks) int {
	n := 0
	for {
		select {
		case p := <-q.events:
			cb.Invoke(p.Kind, p.Inv)
			n++
		default:
			return n
		}
	}
}

// Wait blocks until at least one event arrives, the timeout elapses or the
// queue shuts down, then drains. A negative timeout waits forever.
func (q *Queue) Wait(cb *Callbacks, timeout time.Duration) int {
	var expire <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expire = timer.C
	}

	select {
	case p := <-q.events:
		cb.Invoke(p.Kind, p.Inv)
		return 1 + q.Drain(cb)
	case <-expire:
		return q.Drain(cb)
	case <-q.done:
		return 0
	}
}

// Shutdown wakes any waiter and rejects later pushes. Safe to call twice.
func (q *Queue) Shutdown() {
	select {
	case <-q.done:
	default:
		close(q.done)
	}
}

// SecondsToDuration converts an await timeout in seconds. Negative values
// become zero.
func SecondsToDuration(seconds float64) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
