package chat

import (
	"errors"
	"sync"
	"time"
)

var errBrokenPipe = errors.New("broken pipe")

// fakeConn records every write. failAfter < 0 never fails; otherwise the
// write after failAfter successful writes returns errBrokenPipe.
type fakeConn struct {
	id        string
	failAfter int

	mu     sync.Mutex
	got    []string
	closed bool
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id, failAfter: -1} }

func (f *fakeConn) ID() string         { return f.id }
func (f *fakeConn) RemoteAddr() string { return "pipe:" + f.id }

func (f *fakeConn) Write(p []byte, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClientClosed
	}
	if f.failAfter >= 0 && len(f.got) >= f.failAfter {
		return errBrokenPipe
	}
	f.got = append(f.got, string(p))
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeConn) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.got...)
}
