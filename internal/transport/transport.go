package transport

// Transport is an ingress feeding connections into the shared hub and queue.
type Transport interface {
	Name() string
	// Wait blocks until every ingest worker the transport started has exited.
	Wait()
}

var (
	_ Transport = (*TCPServer)(nil)
	_ Transport = (*WebSocketServer)(nil)
)
