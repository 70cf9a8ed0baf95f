package transport

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketSharesRegistryWithTCP(t *testing.T) {
	r := startRelay(t, Options{}, true)
	wsSrv := NewWebSocketServer(r.hub, r.queue, Options{})
	server := httptest.NewServer(wsSrv)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	wc, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer wc.Close()

	tc := dial(t, r.addr)
	waitFor(t, "both registered", func() bool { return r.hub.Count() == 2 })

	if err := wc.WriteMessage(websocket.TextMessage, []byte("from-ws")); err != nil {
		t.Fatalf("ws write: %v", err)
	}
	if got := readExactly(t, tc, 7); string(got) != "from-ws" {
		t.Fatalf("tcp got %q", got)
	}
	_ = wc.SetReadDeadline(time.Now().Add(3 * time.Second))
	mt, msg, err := wc.ReadMessage()
	if err != nil {
		t.Fatalf("ws read: %v", err)
	}
	if mt != websocket.BinaryMessage || string(msg) != "from-ws" {
		t.Fatalf("ws got type=%d %q", mt, msg)
	}

	if _, err := tc.Write([]byte("from-tcp")); err != nil {
		t.Fatalf("tcp write: %v", err)
	}
	_, msg, err = wc.ReadMessage()
	if err != nil || string(msg) != "from-tcp" {
		t.Fatalf("ws got %q err=%v", msg, err)
	}

	_ = wc.Close()
	waitFor(t, "ws removed", func() bool { return r.hub.Count() == 1 })
}

func TestWebSocketLargeMessageSplit(t *testing.T) {
	r := startRelay(t, Options{}, false)
	wsSrv := NewWebSocketServer(r.hub, r.queue, Options{})
	server := httptest.NewServer(wsSrv)
	defer server.Close()

	wc, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer wc.Close()

	payload := bytes.Repeat([]byte("x"), 2*ChunkSize+10)
	if err := wc.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		t.Fatalf("ws write: %v", err)
	}
	waitFor(t, "three chunks", func() bool { return r.queue.Len() == 3 })

	var sizes []int
	for {
		m, ok := r.queue.TryPop()
		if !ok {
			break
		}
		sizes = append(sizes, len(m.Data))
	}
	if len(sizes) != 3 || sizes[0] != ChunkSize || sizes[1] != ChunkSize || sizes[2] != 10 {
		t.Fatalf("chunk sizes %v", sizes)
	}
}

func TestWebSocketRejectsAfterClose(t *testing.T) {
	r := startRelay(t, Options{}, false)
	wsSrv := NewWebSocketServer(r.hub, r.queue, Options{})
	server := httptest.NewServer(wsSrv)
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	before, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer before.Close()
	waitFor(t, "first peer registered", func() bool { return r.hub.Count() == 1 })

	wsSrv.Close()

	late, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer late.Close()
	_ = late.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := late.ReadMessage(); err == nil {
		t.Fatalf("connection upgraded after Close should be dropped")
	}
	if n := r.hub.Count(); n != 1 {
		t.Fatalf("late peer must not be registered, count=%d", n)
	}

	r.hub.CloseAll()
	done := make(chan struct{})
	go func() {
		wsSrv.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("Wait did not return after CloseAll")
	}
}
