package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/hongjun500/chat-relay/internal/chat"
	"github.com/hongjun500/chat-relay/internal/config"
	"github.com/hongjun500/chat-relay/internal/observe"
	"github.com/hongjun500/chat-relay/internal/tap"
	"github.com/hongjun500/chat-relay/internal/transport"
	"github.com/hongjun500/chat-relay/pkg/logger"
)

func main() {
	defaultPath := config.DefaultPath
	if p := os.Getenv("RELAY_CONFIG"); p != "" {
		defaultPath = p
	}
	configPath := flag.String("config", defaultPath, "path to the JSON config file")
	flag.Parse()
	defer logger.Sync()

	log := logger.L().Sugar()
	log.Infow("config_read", "path", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalw("config_invalid", "err", err)
	}
	if cfg.LogLevel != "" {
		logger.SetLevel(cfg.LogLevel)
	}

	if err := run(cfg); err != nil {
		log.Fatalw("relay_exit", "err", err)
	}
	log.Infow("relay_stopped")
}

func run(cfg *config.Config) error {
	log := logger.L().Sugar()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	hub := chat.NewHub()
	queue := chat.NewQueue(clock)
	opt := transport.Options{ReadTimeout: cfg.ReadTimeout}

	bopt := chat.BroadcasterOptions{
		WriteTimeout:   cfg.WriteTimeout,
		QueueWarnDepth: cfg.QueueWarnDepth,
		Clock:          clock,
	}

	sink, err := tap.New(cfg.Tap)
	if err != nil {
		return err
	}

	tcp := transport.NewTCPServer(hub, queue, opt)
	ln, err := tcp.Listen(cfg.TCPAddr())
	if err != nil {
		if sink != nil {
			_ = sink.Close()
		}
		return err
	}
	log.Infow("relay_listening", "addr", ln.Addr().String(), "port", cfg.ListenPort)

	g, gctx := errgroup.WithContext(ctx)

	if sink != nil {
		mirror := tap.NewMirror(sink, cfg.Tap.Buffer)
		bopt.OnDelivered = mirror.Offer
		g.Go(func() error { return ignoreShutdown(mirror.Run(gctx)) })
	}

	broadcaster := chat.NewBroadcaster(hub, queue, bopt)
	g.Go(func() error { return ignoreShutdown(broadcaster.Run(gctx)) })
	serveDone := make(chan struct{})
	g.Go(func() error {
		defer close(serveDone)
		return ignoreShutdown(tcp.Serve(gctx, ln))
	})

	transports := []transport.Transport{tcp}
	var ws *transport.WebSocketServer
	httpDone := make(chan struct{})
	if cfg.HTTPAddr == "" {
		close(httpDone)
	} else {
		ws = transport.NewWebSocketServer(hub, queue, opt)
		transports = append(transports, ws)
		srv := observe.NewServer(cfg.HTTPAddr, map[string]http.Handler{cfg.WSPath: ws})
		g.Go(func() error {
			log.Infow("http_listen", "addr", cfg.HTTPAddr, "ws_path", cfg.WSPath)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			defer close(httpDone)
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		// no new connections can be registered once both ingresses stopped
		<-serveDone
		<-httpDone
		if ws != nil {
			// upgrades still in flight after Shutdown are refused from here on
			ws.Close()
		}
		// closing every connection fails the blocked reads, so the ingest workers exit
		n := hub.CloseAll()
		for _, t := range transports {
			t.Wait()
		}
		log.Infow("connections_closed", "count", n, "pending", queue.Len())
		return nil
	})

	return g.Wait()
}

func ignoreShutdown(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, transport.ErrServerClosed) {
		return nil
	}
	return err
}
