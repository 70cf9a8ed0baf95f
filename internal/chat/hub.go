package chat

import (
	"sync"

	"github.com/hongjun500/chat-relay/internal/observe"
	"github.com/hongjun500/chat-relay/pkg/logger"
)

// Prune reasons reported to metrics.
const (
	ReasonClosed     = "closed"
	ReasonWriteError = "write_error"
	ReasonDisconnect = "disconnect"
	ReasonShutdown   = "shutdown"
)

// Hub is the registry of open connections. Every mutation and every
// iterate-and-prune pass runs under one mutex, so an entry added before a
// pass starts is seen by that pass.
type Hub struct {
	mu    sync.Mutex
	conns map[Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[Conn]struct{})}
}

// Register inserts c unconditionally.
func (h *Hub) Register(c Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	observe.AddOnline(1)
	logger.L().Sugar().Debugw("conn_registered", "conn", c.ID(), "remote", c.RemoteAddr())
}

// Unregister removes c and reports whether it was still registered. Ingest
// workers call it on exit; the broadcaster may have pruned c already.
func (h *Hub) Unregister(c Conn) bool {
	h.mu.Lock()
	_, ok := h.conns[c]
	delete(h.conns, c)
	h.mu.Unlock()
	if ok {
		h.removed(c, ReasonDisconnect, nil)
	}
	return ok
}

// Visit walks the registry once under the lock. Closed entries are removed
// without calling fn; if fn returns an error the entry is closed and removed.
// It returns how many entries fn succeeded on and how many were pruned.
func (h *Hub) Visit(fn func(Conn) error) (visited, pruned int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.conns {
		if c.IsClosed() {
			delete(h.conns, c)
			h.removed(c, ReasonClosed, nil)
			pruned++
			continue
		}
		if err := fn(c); err != nil {
			_ = c.Close()
			delete(h.conns, c)
			h.removed(c, ReasonWriteError, err)
			pruned++
			continue
		}
		visited++
	}
	return visited, pruned
}

// Count returns the number of registered connections, closed or not.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// CloseAll closes and drops every entry. Used on shutdown; closing the
// connections also unblocks their ingest workers.
func (h *Hub) CloseAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.conns)
	for c := range h.conns {
		_ = c.Close()
		delete(h.conns, c)
		h.removed(c, ReasonShutdown, nil)
	}
	return n
}

func (h *Hub) removed(c Conn, reason string, err error) {
	observe.AddOnline(-1)
	observe.IncPruned(reason)
	if err != nil {
		logger.L().Sugar().Warnw("conn_pruned", "conn", c.ID(), "reason", reason, "err", err)
		return
	}
	logger.L().Sugar().Debugw("conn_pruned", "conn", c.ID(), "reason", reason)
}
