package chat

import (
	"errors"
	"sync"
	"testing"
)

func TestHubRegisterVisit(t *testing.T) {
	hub := NewHub()
	a, b := newFakeConn("a"), newFakeConn("b")
	hub.Register(a)
	hub.Register(b)

	if hub.Count() != 2 {
		t.Fatalf("expect 2 registered, got %d", hub.Count())
	}

	seen := map[string]bool{}
	visited, pruned := hub.Visit(func(c Conn) error {
		seen[c.ID()] = true
		return nil
	})
	if visited != 2 || pruned != 0 {
		t.Fatalf("visited=%d pruned=%d, want 2/0", visited, pruned)
	}
	if !seen["a"] || !seen["b"] {
		t.Fatalf("expected both conns visited, got %v", seen)
	}
}

func TestHubVisitPrunesClosed(t *testing.T) {
	hub := NewHub()
	a, b := newFakeConn("a"), newFakeConn("b")
	hub.Register(a)
	hub.Register(b)
	_ = a.Close()

	var calls []string
	visited, pruned := hub.Visit(func(c Conn) error {
		calls = append(calls, c.ID())
		return nil
	})
	if visited != 1 || pruned != 1 {
		t.Fatalf("visited=%d pruned=%d, want 1/1", visited, pruned)
	}
	if len(calls) != 1 || calls[0] != "b" {
		t.Fatalf("closed conn must not be visited, calls=%v", calls)
	}
	if hub.Count() != 1 {
		t.Fatalf("expect 1 left, got %d", hub.Count())
	}
}

func TestHubVisitPrunesOnError(t *testing.T) {
	hub := NewHub()
	good, bad := newFakeConn("good"), newFakeConn("bad")
	hub.Register(good)
	hub.Register(bad)

	visited, pruned := hub.Visit(func(c Conn) error {
		if c.ID() == "bad" {
			return errors.New("write failed")
		}
		return nil
	})
	if visited != 1 || pruned != 1 {
		t.Fatalf("visited=%d pruned=%d, want 1/1", visited, pruned)
	}
	if !bad.IsClosed() {
		t.Fatalf("failed conn should be closed")
	}
	if good.IsClosed() {
		t.Fatalf("healthy conn should stay open")
	}
	if hub.Count() != 1 {
		t.Fatalf("expect 1 left, got %d", hub.Count())
	}
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub()
	a := newFakeConn("a")
	hub.Register(a)

	if !hub.Unregister(a) {
		t.Fatalf("first unregister should report presence")
	}
	if hub.Unregister(a) {
		t.Fatalf("second unregister should be a no-op")
	}
	if hub.Count() != 0 {
		t.Fatalf("expect empty hub")
	}
}

func TestHubCloseAll(t *testing.T) {
	hub := NewHub()
	conns := []*fakeConn{newFakeConn("a"), newFakeConn("b"), newFakeConn("c")}
	for _, c := range conns {
		hub.Register(c)
	}
	if n := hub.CloseAll(); n != 3 {
		t.Fatalf("CloseAll returned %d, want 3", n)
	}
	for _, c := range conns {
		if !c.IsClosed() {
			t.Fatalf("%s should be closed", c.id)
		}
	}
	if hub.Count() != 0 {
		t.Fatalf("expect empty hub")
	}
}

func TestHubConcurrentRegister(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hub.Register(newFakeConn(string(rune('A' + i))))
		}(i)
	}
	// visits interleave with registrations
	for i := 0; i < 8; i++ {
		hub.Visit(func(Conn) error { return nil })
	}
	wg.Wait()
	if hub.Count() != 64 {
		t.Fatalf("expect 64 registered, got %d", hub.Count())
	}
}
