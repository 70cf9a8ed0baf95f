// Package tap mirrors broadcast messages to an external stream for
// inspection by other systems. The relay never reads a tap back, so it adds
// no replay or durability to the relay itself.
package tap

import (
	"context"
	"fmt"
	"time"

	"github.com/hongjun500/chat-relay/internal/config"
)

// Record is one broadcast message as published to a sink.
type Record struct {
	Seq       uint64
	From      string
	Data      []byte
	When      time.Time
	Delivered int
}

type Sink interface {
	Name() string
	Publish(ctx context.Context, r *Record) error
	Close() error
}

// New builds the sink selected by cfg.Driver. It returns nil, nil when the
// tap is disabled.
func New(cfg config.TapConfig) (Sink, error) {
	switch cfg.Driver {
	case "":
		return nil, nil
	case "redis":
		return NewRedisSink(cfg.RedisAddr, cfg.RedisStream), nil
	case "kafka":
		s, err := NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("tap: unknown driver %q", cfg.Driver)
	}
}
