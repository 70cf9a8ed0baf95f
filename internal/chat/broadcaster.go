package chat

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/hongjun500/chat-relay/internal/observe"
	"github.com/hongjun500/chat-relay/pkg/logger"
)

// BroadcasterOptions configures a Broadcaster. Zero values are usable.
type BroadcasterOptions struct {
	WriteTimeout   time.Duration   // per-write deadline, started when that write begins; 0 to disable
	QueueWarnDepth int             // log a throttled warning at or above this depth; 0 to disable
	Clock          clockwork.Clock // queue wait and pass duration metrics

	// OnDelivered, if set, is called after each broadcast pass with the
	// message and the number of connections that received it.
	OnDelivered func(m Message, delivered int)
}

// Broadcaster drains the queue in order and writes each message to every
// live connection in the hub. Run it in exactly one goroutine.
type Broadcaster struct {
	hub   *Hub
	queue *Queue
	opt   BroadcasterOptions
	warn  rate.Sometimes
}

func NewBroadcaster(hub *Hub, queue *Queue, opt BroadcasterOptions) *Broadcaster {
	if opt.Clock == nil {
		opt.Clock = clockwork.NewRealClock()
	}
	return &Broadcaster{
		hub:   hub,
		queue: queue,
		opt:   opt,
		warn:  rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
}

// Run blocks until ctx is cancelled and returns ctx.Err().
func (b *Broadcaster) Run(ctx context.Context) error {
	logger.L().Sugar().Infow("broadcaster_start", "write_timeout", b.opt.WriteTimeout)
	for {
		m, err := b.queue.Pop(ctx)
		if err != nil {
			logger.L().Sugar().Infow("broadcaster_stop", "pending", b.queue.Len())
			return err
		}
		b.Deliver(m)
	}
}

// Deliver performs one broadcast pass for m.
func (b *Broadcaster) Deliver(m Message) int {
	start := b.opt.Clock.Now()
	observe.ObserveQueueWait(start.Sub(m.EnqueuedAt))

	// each write gets its own wall-clock deadline, so a stalled peer only
	// costs the pass time and never expires the writes that follow it
	delivered, pruned := b.hub.Visit(func(c Conn) error {
		var deadline time.Time
		if b.opt.WriteTimeout > 0 {
			deadline = time.Now().Add(b.opt.WriteTimeout)
		}
		return c.Write(m.Data, deadline)
	})

	observe.AddDeliveries(delivered)
	observe.ObserveBroadcast(b.opt.Clock.Since(start))
	logger.L().Sugar().Debugw("broadcast",
		"seq", m.Seq, "from", m.From, "bytes", len(m.Data),
		"delivered", delivered, "pruned", pruned)

	if b.opt.QueueWarnDepth > 0 {
		if depth := b.queue.Len(); depth >= b.opt.QueueWarnDepth {
			b.warn.Do(func() {
				logger.L().Sugar().Warnw("queue_backlog", "depth", depth, "threshold", b.opt.QueueWarnDepth)
			})
		}
	}

	if b.opt.OnDelivered != nil {
		b.opt.OnDelivered(m, delivered)
	}
	return delivered
}
