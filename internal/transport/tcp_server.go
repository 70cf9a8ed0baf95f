package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hongjun500/chat-relay/internal/chat"
	"github.com/hongjun500/chat-relay/internal/observe"
	"github.com/hongjun500/chat-relay/pkg/logger"
)

// TCPServer is the acceptor loop. Each accepted connection is registered in
// Hub and gets its own ingest goroutine pushing raw chunks onto Queue.
type TCPServer struct {
	Hub   *chat.Hub
	Queue *chat.Queue
	Opt   Options

	wg     sync.WaitGroup
	errLog *rate.Sometimes
}

func NewTCPServer(hub *chat.Hub, queue *chat.Queue, opt Options) *TCPServer {
	return &TCPServer{
		Hub:    hub,
		Queue:  queue,
		Opt:    opt,
		errLog: &rate.Sometimes{First: 3, Interval: 5 * time.Second},
	}
}

func (s *TCPServer) Name() string { return Tcp }

// Listen binds addr. A failure here is fatal for the process.
func (s *TCPServer) Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, listenError(addr, err)
	}
	logger.L().Sugar().Infow("tcp_listen", "addr", ln.Addr().String())
	return ln, nil
}

// Start binds addr and serves until ctx is done.
func (s *TCPServer) Start(ctx context.Context, addr string) error {
	ln, err := s.Listen(addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is cancelled or ln is closed. It closes ln
// before returning. Ingest workers may still be running; see Wait.
func (s *TCPServer) Serve(ctx context.Context, ln net.Listener) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		_ = ln.Close()
	}()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}
			// transient: log and back off like net/http does
			observe.IncAcceptError()
			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff *= 2
			}
			if backoff > time.Second {
				backoff = time.Second
			}
			s.errLog.Do(func() {
				logger.L().Sugar().Warnw("tcp_accept_error", "err", err, "retry_in", backoff)
			})
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		backoff = 0
		if ctx.Err() != nil {
			_ = conn.Close()
			return ctx.Err()
		}

		c := chat.NewClient(conn)
		s.Hub.Register(c)
		observe.IncConnection(Tcp)
		logger.L().Sugar().Infow("tcp_client_connected", "client", c.ID(), "remote", c.RemoteAddr())

		s.wg.Add(1)
		go s.serveConn(c)
	}
}

// Wait blocks until every ingest worker started by Serve has exited.
func (s *TCPServer) Wait() { s.wg.Wait() }

// serveConn is the ingest worker: it reads chunks of up to ChunkSize bytes
// and pushes each one. Its exit always closes and unregisters c.
func (s *TCPServer) serveConn(c *chat.Client) {
	defer s.wg.Done()
	defer func() {
		_ = c.Close()
		s.Hub.Unregister(c)
	}()

	buf := make([]byte, ChunkSize)
	for {
		if s.Opt.ReadTimeout > 0 {
			_ = c.SetReadDeadline(time.Now().Add(s.Opt.ReadTimeout))
		}
		n, err := c.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			s.Queue.Push(c.ID(), data)
		}
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				logger.L().Sugar().Infow("tcp_client_disconnected", "client", c.ID())
			case c.IsClosed() || errors.Is(err, net.ErrClosed):
				logger.L().Sugar().Debugw("tcp_client_closed", "client", c.ID())
			default:
				logger.L().Sugar().Warnw("tcp_read_error", "client", c.ID(), "err", err)
			}
			return
		}
	}
}
