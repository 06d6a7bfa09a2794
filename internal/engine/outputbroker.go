package engine

import "sync"

// subscriberBufferSize is the channel buffer for each output subscriber.
// Lines are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 64

// OutputBroker fans out a task's live output lines to subscribers. It is safe
// for concurrent use.
//
// Finished streams are retained as closed markers so that late subscribers
// (those subscribing after a task reaches a terminal state) receive a closed
// channel instead of blocking forever. Each marker is a few bytes, which is
// acceptable for the expected task volume.
type OutputBroker struct {
	mu      sync.Mutex
	streams map[string]*outputStream
}

type outputStream struct {
	subs   map[int]chan string
	nextID int
	closed bool
}

// NewOutputBroker creates an empty broker.
func NewOutputBroker() *OutputBroker {
	return &OutputBroker{
		streams: make(map[string]*outputStream),
	}
}

// Subscribe returns a channel that receives output lines for the given task
// and an unsubscribe function. If the task has already finished (Close was
// called), the returned channel is immediately closed.
func (b *OutputBroker) Subscribe(taskID string) (<-chan string, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.streams[taskID]
	if !ok {
		st = &outputStream{subs: make(map[int]chan string)}
		b.streams[taskID] = st
	}

	ch := make(chan string, subscriberBufferSize)
	if st.closed {
		close(ch)
		return ch, func() {}
	}

	id := st.nextID
	st.nextID++
	st.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(st.subs, id)
	}
}

// Publish sends an output line to all subscribers of the given task.
// Lines are dropped for subscribers whose buffers are full.
func (b *OutputBroker) Publish(taskID, line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.streams[taskID]
	if !ok || st.closed {
		return
	}

	for _, ch := range st.subs {
		select {
		case ch <- line:
		default:
			// Drop the line for slow subscribers to avoid blocking execution.
		}
	}
}

// Close signals that no more output will be published for the given task.
// All subscriber channels are closed and future Subscribe calls return a
// closed channel.
func (b *OutputBroker) Close(taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.streams[taskID]
	if !ok {
		// Closed marker for late subscribers.
		b.streams[taskID] = &outputStream{subs: make(map[int]chan string), closed: true}
		return
	}

	st.closed = true
	for id, ch := range st.subs {
		close(ch)
		delete(st.subs, id)
	}
}
