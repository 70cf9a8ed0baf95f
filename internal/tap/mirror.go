package tap

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/hongjun500/chat-relay/internal/chat"
	"github.com/hongjun500/chat-relay/internal/observe"
	"github.com/hongjun500/chat-relay/pkg/logger"
)

const publishTimeout = 2 * time.Second

// Mirror copies broadcast messages to a Sink off the broadcast path. Offer
// never blocks: when the buffer is full the record is dropped and counted.
type Mirror struct {
	sink   Sink
	ch     chan *Record
	cb     *gobreaker.CircuitBreaker
	errLog *rate.Sometimes
}

func NewMirror(sink Sink, buffer int) *Mirror {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Mirror{
		sink: sink,
		ch:   make(chan *Record, buffer),
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "tap_" + sink.Name(),
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.L().Sugar().Warnw("tap_breaker_state", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
		errLog: &rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
}

// Offer has the signature of chat.BroadcasterOptions.OnDelivered.
func (m *Mirror) Offer(msg chat.Message, delivered int) {
	r := &Record{Seq: msg.Seq, From: msg.From, Data: msg.Data, When: msg.EnqueuedAt, Delivered: delivered}
	select {
	case m.ch <- r:
	default:
		observe.IncTapDropped()
	}
}

// Run publishes offered records in order until ctx is done, then closes the sink.
func (m *Mirror) Run(ctx context.Context) error {
	defer func() {
		if err := m.sink.Close(); err != nil {
			logger.L().Sugar().Warnw("tap_close_error", "sink", m.sink.Name(), "err", err)
		}
	}()
	logger.L().Sugar().Infow("tap_start", "sink", m.sink.Name(), "buffer", cap(m.ch))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-m.ch:
			m.publish(ctx, r)
		}
	}
}

func (m *Mirror) publish(ctx context.Context, r *Record) {
	_, err := m.cb.Execute(func() (interface{}, error) {
		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		return nil, m.sink.Publish(pctx, r)
	})
	if err != nil {
		observe.IncTapError(m.sink.Name())
		m.errLog.Do(func() {
			logger.L().Sugar().Warnw("tap_publish_error", "sink", m.sink.Name(), "seq", r.Seq, "err", err)
		})
	}
}

// State reports the circuit breaker state.
func (m *Mirror) State() gobreaker.State { return m.cb.State() }
