package observe

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMux builds the admin mux: /healthz, /metrics plus any extra handlers
// keyed by path (the WebSocket ingress mounts itself this way).
func NewMux(extra map[string]http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintln(w, "ok")
	})
	mux.Handle("/metrics", promhttp.Handler())
	for path, h := range extra {
		mux.Handle(path, h)
	}
	return mux
}

// NewServer wraps NewMux in an http.Server bound to addr.
func NewServer(addr string, extra map[string]http.Handler) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: NewMux(extra),
	}
}
