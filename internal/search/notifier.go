package search

import "sync"

// notifier runs consumer callbacks on a single goroutine in enqueue order. The queue is unbounded.
type notifier struct {
	consumer Consumer

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func(Consumer)
	closed bool
	done   chan struct{}
}

func newNotifier(c Consumer) *notifier {
	if c == nil {
		c = nopConsumer{}
	}
	n := &notifier{consumer: c, done: make(chan struct{})}
	n.cond = sync.NewCond(&n.mu)
	go n.run()
	return n
}

func (n *notifier) enqueue(fn func(Consumer)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.queue = append(n.queue, fn)
	n.cond.Signal()
}

func (n *notifier) run() {
	defer close(n.done)
	for {
		n.mu.Lock()
		for len(n.queue) == 0 && !n.closed {
			n.cond.Wait()
		}
		if len(n.queue) == 0 {
			n.mu.Unlock()
			return
		}
		batch := n.queue
		n.queue = nil
		n.mu.Unlock()

		for _, fn := range batch {
			fn(n.consumer)
		}
	}
}

// close stops accepting callbacks and waits until the queued ones have run.
func (n *notifier) close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		n.cond.Broadcast()
	}
	n.mu.Unlock()
	<-n.done
}
