package transport

import (
	"time"
)

// ChunkSize is the largest single read an ingest worker performs, and so the
// largest message the relay broadcasts.
const ChunkSize = 4096

const (
	Tcp       = "tcp"
	WebSocket = "websocket"
)

// Options configures transports (shared across TCP/WS where applicable)
type Options struct {
	ReadTimeout time.Duration // per-read idle deadline; 0 to disable
}
