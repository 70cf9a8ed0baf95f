package chat

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hongjun500/chat-relay/internal/observe"
)

// Message is one chunk read from a connection.
type Message struct {
	Seq        uint64 // assigned at push, strictly increasing
	From       string // id of the connection that produced it
	Data       []byte
	EnqueuedAt time.Time
}

// Queue is the unbounded FIFO between ingest workers and the broadcaster.
// The lock is held only to push or pop one item; a one-slot notify channel
// wakes a consumer blocked in Pop.
type Queue struct {
	mu     sync.Mutex
	items  []Message
	seq    uint64
	notify chan struct{}
	clock  clockwork.Clock
}

func NewQueue(clock clockwork.Clock) *Queue {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Queue{
		notify: make(chan struct{}, 1),
		clock:  clock,
	}
}

// Push appends data and never blocks on queue size.
func (q *Queue) Push(from string, data []byte) Message {
	q.mu.Lock()
	q.seq++
	m := Message{Seq: q.seq, From: from, Data: data, EnqueuedAt: q.clock.Now()}
	q.items = append(q.items, m)
	depth := len(q.items)
	q.mu.Unlock()

	observe.SetQueueDepth(depth)
	observe.IncMessage(len(data))

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return m
}

// TryPop removes the oldest message if there is one.
func (q *Queue) TryPop() (Message, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return Message{}, false
	}
	m := q.items[0]
	q.items[0] = Message{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	depth := len(q.items)
	q.mu.Unlock()

	observe.SetQueueDepth(depth)
	return m, true
}

// Pop blocks until a message is available or ctx is done.
func (q *Queue) Pop(ctx context.Context) (Message, error) {
	for {
		if m, ok := q.TryPop(); ok {
			return m, nil
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
