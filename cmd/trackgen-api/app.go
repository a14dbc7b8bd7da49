package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/BearBump/trackgen/internal/api/grpcapi"
	"github.com/BearBump/trackgen/internal/api/httpapi"
	"github.com/BearBump/trackgen/internal/metrics"
	"github.com/BearBump/trackgen/internal/services/trackingnumbers"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
)

type trackGenOpts struct {
	grpcAddr    string
	httpAddr    string
	swaggerPath string

	rateLimitPerMinute int64

	onListen func(grpcAddr, httpAddr string)
}

type serverDeps struct {
	svc     *trackingnumbers.Service
	ready   httpapi.Pinger
	limiter httpapi.RateLimiter
	metrics *metrics.Metrics
	log     *slog.Logger
}

func runTrackGenAPI(ctx context.Context, opts trackGenOpts, deps serverDeps) error {
	if deps.log == nil {
		deps.log = slog.Default()
	}

	httpOpts := httpapi.Options{
		Generator:          deps.svc,
		Ready:              deps.ready,
		RateLimiter:        deps.limiter,
		RateLimitPerMinute: opts.rateLimitPerMinute,
		SwaggerPath:        opts.swaggerPath,
		Logger:             deps.log,
	}
	if deps.metrics != nil {
		httpOpts.Metrics = deps.metrics
	}
	router := httpapi.NewRouter(httpOpts)

	var serverOpts []grpc.ServerOption
	if deps.metrics != nil {
		serverOpts = append(serverOpts, grpc.UnaryInterceptor(grpcapi.MetricsInterceptor(deps.metrics)))
	}
	grpcSrv := grpc.NewServer(serverOpts...)
	grpcapi.RegisterTrackingNumbersServer(grpcSrv, grpcapi.New(deps.svc, deps.log))

	grpcLis, err := net.Listen("tcp", opts.grpcAddr)
	if err != nil {
		return err
	}
	httpLis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		_ = grpcLis.Close()
		return err
	}

	if opts.onListen != nil {
		opts.onListen(grpcLis.Addr().String(), httpLis.Addr().String())
	}

	grpcErr := make(chan error, 1)
	go func() {
		grpcErr <- runGRPCServer(ctx, grpcLis, grpcSrv, deps.log)
	}()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, httpLis, router, deps.log)
	}()

	// после отмены ждём, пока оба сервера дообслужат запросы
	select {
	case <-ctx.Done():
		<-grpcErr
		<-httpErr
		return ctx.Err()
	case err := <-grpcErr:
		return err
	case err := <-httpErr:
		return err
	}
}

func runGRPCServer(ctx context.Context, lis net.Listener, s *grpc.Server, log *slog.Logger) error {
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		stopped := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			s.Stop()
		}
		_ = lis.Close()
	}()

	log.Info("gRPC server listening", "addr", lis.Addr().String())
	err := s.Serve(lis)
	if ctx.Err() != nil {
		<-drained
		return nil
	}
	return err
}

func runHTTPServer(ctx context.Context, lis net.Listener, h http.Handler, log *slog.Logger) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("HTTP server listening", "addr", lis.Addr().String())
	// Serve возвращает ErrServerClosed сразу после вызова Shutdown, дожидаемся самого Shutdown.
	if err := srv.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-drained
	return nil
}
