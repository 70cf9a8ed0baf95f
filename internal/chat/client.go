package chat

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrClientClosed = errors.New("chat: client closed")

// Conn is one registered peer. The broadcaster is its only writer; the
// ingest worker that owns the read side is its only reader.
type Conn interface {
	ID() string
	RemoteAddr() string
	// Write sends p in full or fails. A zero deadline means no deadline.
	Write(p []byte, deadline time.Time) error
	Close() error
	IsClosed() bool
}

// Client is a TCP connection in the registry.
type Client struct {
	id          string
	conn        net.Conn
	ConnectedAt time.Time

	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(conn net.Conn) *Client {
	return &Client{
		id:          uuid.New().String(),
		conn:        conn,
		ConnectedAt: time.Now(),
		closed:      make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) RemoteAddr() string {
	if c.conn != nil {
		return c.conn.RemoteAddr().String()
	}
	return ""
}

// Read reads the next chunk from the peer. Only the ingest worker calls it.
func (c *Client) Read(p []byte) (int, error) { return c.conn.Read(p) }

func (c *Client) SetReadDeadline(t time.Time) error { return c.conn.SetReadDeadline(t) }

func (c *Client) Write(p []byte, deadline time.Time) error {
	if c.IsClosed() {
		return ErrClientClosed
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	// net.Conn.Write loops until p is written or an error occurs
	_, err := c.conn.Write(p)
	return err
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// IsClosed 非阻塞判断是否已关闭
func (c *Client) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Done is closed once Close has been called.
func (c *Client) Done() <-chan struct{} { return c.closed }
