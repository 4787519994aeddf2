// Command switchboardd runs C9's relay server (§4.9) standalone: a
// WebSocket-terminated switchboard with its own Prometheus metrics
// endpoint. Modeled on the pack's StartMetricsServer pattern
// (orbas1-Synnergy/synnergy-network's HealthLogger) for exposing
// /metrics alongside the primary listener.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lux-nexus/switchboard/internal/metrics"
	"github.com/lux-nexus/switchboard/internal/switchboard"
)

// Exit codes (§6 "Exit codes"): this process only ever produces 0 (clean
// exit) or 2 (network bind error) — it has no config file or keystore of
// its own to fail on 1 or 3, and no bridge graph to fail on 4.
const (
	exitOK        = 0
	exitBindError = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	addr := flag.String("addr", ":9000", "address the agent-facing websocket listener binds")
	path := flag.String("path", "/", "HTTP path the websocket upgrade is served on")
	metricsAddr := flag.String("metrics-addr", ":9090", "address the /metrics endpoint binds")
	flag.Parse()

	logger := log.NewLogger("switchboardd")
	reg := prometheus.NewRegistry()
	met := metrics.New(reg)

	transport := switchboard.NewWSTransport(*addr, *path, logger)
	sb := switchboard.New(transport, logger, switchboard.WithMetrics(met))

	metricsSrv := &http.Server{Addr: *metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("switchboardd: metrics listener exited", log.Err(err))
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- transport.ListenAndServe() }()
	go sb.Run(ctx)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("switchboardd: websocket listener failed", log.Err(err))
			return exitBindError
		}
	case <-ctx.Done():
		logger.Info("switchboardd: shutting down")
		_ = transport.Close()
		_ = metricsSrv.Shutdown(context.Background())
		<-errCh
	}
	return exitOK
}
