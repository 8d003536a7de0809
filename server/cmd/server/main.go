package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/omnistream/omnistream/pkg/telemetry"
	"github.com/omnistream/omnistream/server/internal/alerts"
	"github.com/omnistream/omnistream/server/internal/api"
	"github.com/omnistream/omnistream/server/internal/auth"
	"github.com/omnistream/omnistream/server/internal/config"
	"github.com/omnistream/omnistream/server/internal/receiver"
	"github.com/omnistream/omnistream/server/internal/store"
	"github.com/omnistream/omnistream/server/internal/ws"
)

// shutdownTimeout bounds each phase of server shutdown.
const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file (defaults are used when empty)")
	grpcPort := flag.Int("grpc-port", 0, "override server.grpc_port")
	httpPort := flag.Int("http-port", 0, "override server.http_port")
	logLevel := flag.String("log-level", "info", "debug | info | warn | error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid --log-level %q\n", *logLevel)
		os.Exit(2)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("omnistream-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	srvCfg := cfg.Server
	if *grpcPort > 0 {
		srvCfg.GRPCPort = *grpcPort
	}
	if *httpPort > 0 {
		srvCfg.HTTPPort = *httpPort
	}

	slog.Info("config loaded",
		"grpc_port", srvCfg.GRPCPort,
		"http_port", srvCfg.HTTPPort,
		"auth_mode", srvCfg.Auth.Mode,
		"vehicle_ttl", srvCfg.Vehicle.TTL,
		"alert_rules", len(srvCfg.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st := store.New(srvCfg.Vehicle.TTL)
	alertEngine := alerts.New(srvCfg.Alerts)

	// gRPC receiver with API key or mTLS authentication.
	header, key := srvCfg.Auth.EffectiveHeader(), srvCfg.Auth.Key()
	grpcOpts := []grpc.ServerOption{
		grpc.StreamInterceptor(auth.APIKeyStreamInterceptor(srvCfg.Auth.Mode, header, key)),
	}
	if srvCfg.Auth.Mode == "mtls" {
		tlsCfg, err := auth.ServerTLSConfig(srvCfg.Auth.CertFile, srvCfg.Auth.KeyFile, srvCfg.Auth.CAFile)
		if err != nil {
			slog.Error("failed to build TLS config", "err", err)
			os.Exit(1)
		}
		grpcOpts = append(grpcOpts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	}
	grpcSrv := grpc.NewServer(grpcOpts...)
	telemetry.RegisterStreamServer(grpcSrv, receiver.New(st, alertEngine))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", srvCfg.GRPCPort))
	if err != nil {
		slog.Error("failed to listen on gRPC port", "port", srvCfg.GRPCPort, "err", err)
		os.Exit(1)
	}

	hub := ws.New(st, srvCfg.BroadcastInterval)

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", auth.APIKeyMiddleware(srvCfg.Auth.Mode, header, key, api.New(st, alertEngine)))
	httpMux.Handle("/ws/stream", hub)
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", srvCfg.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st.Run(gctx)
		return nil
	})
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		slog.Info("gRPC receiver listening", "port", srvCfg.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("HTTP server listening", "port", srvCfg.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("omnistream-server shutting down")
		stopGRPC(grpcSrv, shutdownTimeout)
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server stopped with error", "err", err)
		os.Exit(1)
	}
}

// stopGRPC lets in-flight RPCs finish for up to timeout, then closes them.
// Agent streams stay open for as long as the agent runs, so a graceful stop
// alone would never return while one is connected. Reports whether the
// graceful stop completed in time.
func stopGRPC(srv *grpc.Server, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		slog.Warn("gRPC streams still open after shutdown timeout, closing them", "timeout", timeout)
		srv.Stop()
		<-done
		return false
	}
}
