package telemetry

import "sync"

// notifier runs queued callbacks one at a time in FIFO order.
// The queue is unbounded and the worker goroutine exists only while
// there is work to drain.
type notifier struct {
	mu      sync.Mutex
	queue   []func()
	running bool
	logger  Logger
}

func newNotifier(logger Logger) *notifier {
	return &notifier{logger: logger}
}

// enqueue appends fn and starts the worker if it is idle. Never blocks on fn.
func (n *notifier) enqueue(fn func()) {
	n.mu.Lock()
	n.queue = append(n.queue, fn)
	if n.running {
		n.mu.Unlock()
		return
	}
	n.running = true
	n.mu.Unlock()

	go n.drain()
}

func (n *notifier) drain() {
	for {
		n.mu.Lock()
		if len(n.queue) == 0 {
			n.running = false
			n.queue = nil
			n.mu.Unlock()
			return
		}
		fn := n.queue[0]
		n.queue[0] = nil
		n.queue = n.queue[1:]
		n.mu.Unlock()

		n.call(fn)
	}
}

func (n *notifier) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("telemetry callback panicked", "panic", r)
		}
	}()
	fn()
}
