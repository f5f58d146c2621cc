// Command server runs a framed echo server: every message a client sends is
// written back to it unchanged.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	socket "github.com/Zereker/socket/v2"
	"github.com/Zereker/socket/v2/internal/config"
	"github.com/Zereker/socket/v2/internal/metrics"
	"github.com/Zereker/socket/v2/internal/observability"
)

func main() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to TOML/YAML config file")
	writeConfig := fs.String("write-config", "", "Write a default config to this path and exit")
	_ = fs.Parse(os.Args[1:])

	if *writeConfig != "" {
		if err := config.WriteTemplate(*writeConfig, false); err != nil {
			fatal(err)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	log := observability.Logger(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sink, err := metrics.NewPrometheus(reg, "socket")
	if err != nil {
		return err
	}

	sessionOpts, err := cfg.SessionOptions()
	if err != nil {
		return err
	}
	sessionOpts = append(sessionOpts,
		socket.OnMessageOption(socket.Echo),
		socket.LoggerOption(log),
		socket.MetricsOption(sink),
	)

	table := socket.NewSessionTable()
	handler := socket.NewSessionHandler(table, sessionOpts...)

	addr, err := net.ResolveTCPAddr("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	server, err := socket.New(addr,
		socket.ServerLoggerOption(log),
		socket.ServerShutdownTimeoutOption(cfg.Shutdown),
	)
	if err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.Serve(ctx, handler)
	})

	var servers []*http.Server
	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		servers = append(servers, &http.Server{Addr: cfg.MetricsListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second})
	}
	if cfg.WebSocketListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/", socket.WebSocketHandler(handler))
		servers = append(servers, &http.Server{Addr: cfg.WebSocketListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second})
	}
	for _, srv := range servers {
		srv := srv
		log.Info("http listener started", "addr", srv.Addr)
		group.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown+time.Second)
		defer cancel()
		for _, srv := range servers {
			_ = srv.Shutdown(shutdownCtx)
		}
		table.CloseAll()
		log.Info("shutdown complete", "sessions_left", table.Len())
		return nil
	})

	return group.Wait()
}

func fatal(err error) {
	_, _ = os.Stderr.WriteString(err.Error() + "\n")
	os.Exit(1)
}
