package transport

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hongjun500/chat-relay/internal/chat"
	"github.com/hongjun500/chat-relay/internal/observe"
	"github.com/hongjun500/chat-relay/pkg/logger"
)

const wsReadLimit = 1 << 20

// wsConn implements chat.Conn for WebSocket peers. Broadcasts go out as
// binary messages.
type wsConn struct {
	id        string
	conn      *websocket.Conn
	closeOnce sync.Once
	closed    chan struct{}
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{
		id:     uuid.New().String(),
		conn:   conn,
		closed: make(chan struct{}),
	}
}

func (w *wsConn) ID() string { return w.id }

func (w *wsConn) RemoteAddr() string {
	return w.conn.RemoteAddr().String()
}

func (w *wsConn) Write(p []byte, deadline time.Time) error {
	if w.IsClosed() {
		return chat.ErrClientClosed
	}
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.BinaryMessage, p)
}

func (w *wsConn) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closed)
		err = w.conn.Close()
	})
	return err
}

func (w *wsConn) IsClosed() bool {
	select {
	case <-w.closed:
		return true
	default:
		return false
	}
}

// WebSocketServer is an http.Handler feeding WebSocket peers into the same
// hub and queue as the TCP acceptor. Each WebSocket message becomes one or
// more chunks of at most ChunkSize bytes, in order.
type WebSocketServer struct {
	Hub   *chat.Hub
	Queue *chat.Queue
	Opt   Options

	upgrader websocket.Upgrader

	mu     sync.Mutex // guards closed and wg.Add
	closed bool
	wg     sync.WaitGroup
}

func NewWebSocketServer(hub *chat.Hub, queue *chat.Queue, opt Options) *WebSocketServer {
	return &WebSocketServer{
		Hub:   hub,
		Queue: queue,
		Opt:   opt,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  ChunkSize,
			WriteBufferSize: ChunkSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (ws *WebSocketServer) Name() string { return WebSocket }

func (ws *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		logger.L().Sugar().Warnw("ws_upgrade_error", "remote", r.RemoteAddr, "err", err)
		return
	}
	conn.SetReadLimit(wsReadLimit)

	c := newWSConn(conn)
	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		// http.Server.Shutdown does not track hijacked conns
		logger.L().Sugar().Debugw("ws_rejected_closed", "remote", c.RemoteAddr())
		_ = c.Close()
		return
	}
	ws.Hub.Register(c)
	ws.wg.Add(1)
	ws.mu.Unlock()

	observe.IncConnection(WebSocket)
	logger.L().Sugar().Infow("ws_client_connected", "client", c.ID(), "remote", c.RemoteAddr())
	ws.serveConn(c)
}

// Close stops admitting new WebSocket peers. Connections upgraded after Close
// are closed immediately. Existing peers are left to the hub.
func (ws *WebSocketServer) Close() {
	ws.mu.Lock()
	ws.closed = true
	ws.mu.Unlock()
}

// Wait blocks until every WebSocket ingest loop has exited. Call Close first.
func (ws *WebSocketServer) Wait() { ws.wg.Wait() }

func (ws *WebSocketServer) serveConn(c *wsConn) {
	defer ws.wg.Done()
	defer func() {
		_ = c.Close()
		ws.Hub.Unregister(c)
	}()

	for {
		if ws.Opt.ReadTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(ws.Opt.ReadTimeout))
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				logger.L().Sugar().Infow("ws_client_disconnected", "client", c.ID())
			case c.IsClosed() || errors.Is(err, net.ErrClosed):
				logger.L().Sugar().Debugw("ws_client_closed", "client", c.ID())
			default:
				logger.L().Sugar().Warnw("ws_read_error", "client", c.ID(), "err", err)
			}
			return
		}
		// data is freshly allocated per message, so sub-slices are safe to queue
		for len(data) > 0 {
			n := min(len(data), ChunkSize)
			ws.Queue.Push(c.ID(), data[:n:n])
			data = data[n:]
		}
	}
}
