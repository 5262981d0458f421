// Command relay runs the nostr relay process: it loads configuration
// from the environment, opens the Postgres-backed event store and
// whitelist cache, wires the ingestion pipeline and broadcast hub, and
// serves both the plain HTTP surface and WebSocket connections on one
// listener, mirroring the reference relay's main() bootstrap
// (kwsantiago-orly/main.go) adapted for this relay's own component set.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nostrelay/relay/internal/broadcast"
	"github.com/nostrelay/relay/internal/config"
	"github.com/nostrelay/relay/internal/httpapi"
	"github.com/nostrelay/relay/internal/ingest"
	"github.com/nostrelay/relay/internal/logx"
	"github.com/nostrelay/relay/internal/monitor"
	"github.com/nostrelay/relay/internal/nostrcrypto"
	"github.com/nostrelay/relay/internal/rpc"
	"github.com/nostrelay/relay/internal/store"
	"github.com/nostrelay/relay/internal/whitelist"
	"github.com/nostrelay/relay/internal/wsapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
	logx.SetLevel(cfg.LogLevel)
	logx.I.F("starting relay on port %d", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logx.F.F("opening event store: %v", err)
	}
	defer st.Close()

	wl := whitelist.New(st, cfg.RedisURL)
	hub := broadcast.New()
	verifier := nostrcrypto.NewVerifier()
	pipeline := ingest.New(st, wl, verifier, hub)
	rpcHandler := rpc.New(st, wl)

	relayURL := fmt.Sprintf("ws://localhost:%d/", cfg.Port)
	wsDeps := wsapi.Deps{
		Store:        st,
		Reconcile:    st,
		Ingest:       pipeline,
		Hub:          hub,
		RPC:          rpcHandler,
		Verifier:     verifier,
		AuthRequired: cfg.AuthRequired,
		RelayURL:     relayURL,
	}
	httpServer := httpapi.New("nostrelay", "a nostr relay", relayURL, wsDeps.AuthRequired, wsDeps)

	go monitor.Run(ctx, hub, relayURL)

	mux := http.NewServeMux()
	mux.Handle("/", httpServer)
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: mux}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logx.I.F("shutting down")
		cancel()
		_ = srv.Close()
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logx.F.F("server terminated: %v", err)
	}
}
