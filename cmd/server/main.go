package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	galleryv1 "github.com/PaulBabatuyi/CarLot-gRPC/api/gallery/v1"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/config"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/database"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/gallery"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/httpapi"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/middleware"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/observability"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/service"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/storage"
	"github.com/PaulBabatuyi/CarLot-gRPC/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Health checks must work before a client has credentials.
var publicMethods = []string{
	"/grpc.health.v1.Health/Check",
	"/grpc.health.v1.Health/Watch",
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "carlot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Configuration and logging
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := observability.InitLogger(cfg.LogLevel, cfg.DevMode)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var tp *sdktrace.TracerProvider
	if cfg.Tracing.Enabled {
		if tp, err = observability.InitTracerProvider(ctx, logger); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			observability.ShutdownTracerProvider(shutdownCtx, tp, logger)
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := observability.InitMetrics(reg, reg)
	if err != nil {
		return err
	}

	// 2. Dependencies
	db, err := database.NewPostgresDB(cfg.DB.URL, cfg.DB.MaxOpenConns)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.DB.Migrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	auth, err := newAuthenticator(ctx, cfg.Auth)
	if err != nil {
		return err
	}

	var thumbnails gallery.ThumbnailQueue
	if cfg.Worker.Enabled {
		thumbnails = worker.NewQueue(db, cfg.Worker.MaxRetries)
	}
	workflow := gallery.New(store, db, gallery.Config{
		Bucket:     cfg.Storage.Bucket,
		Logger:     logger,
		Metrics:    metrics.Gallery(),
		Thumbnails: thumbnails,
	})
	guard := middleware.NewListingGuard(db)
	limits := service.Limits{MaxFileBytes: cfg.Upload.MaxFileBytes, MaxFiles: cfg.Upload.MaxFiles}

	// 3. gRPC server
	serverMetrics := metrics.GetServerMetrics()
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(observability.GRPCStatsHandler()),
		grpc.UnaryInterceptor(middleware.ChainUnaryInterceptors(
			serverMetrics.UnaryServerInterceptor(),
			middleware.UnaryLoggingInterceptor(logger),
			middleware.AuthInterceptor(auth, publicMethods...),
		)),
		grpc.StreamInterceptor(middleware.ChainStreamInterceptors(
			serverMetrics.StreamServerInterceptor(),
			middleware.StreamLoggingInterceptor(logger),
			middleware.StreamAuthInterceptor(auth, publicMethods...),
		)),
	)
	galleryv1.RegisterGalleryServiceServer(grpcServer, service.NewGalleryServer(workflow, guard, service.Options{
		Limits:               limits,
		MaxConcurrentUploads: cfg.Upload.MaxConcurrent,
		Logger:               logger,
	}))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	serverMetrics.InitializeMetrics(grpcServer)

	// 4. HTTP server
	if !cfg.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}
	objectsRoot := ""
	if cfg.Storage.Backend == "fs" && cfg.Storage.PublicBaseURL == "" {
		objectsRoot = cfg.Storage.FSRoot
	}
	httpServer := &http.Server{
		Addr: ":" + cfg.Server.HTTPPort,
		Handler: httpapi.NewRouter(httpapi.Config{
			Workflow:     workflow,
			Guard:        guard,
			Auth:         auth,
			Limits:       limits,
			Logger:       logger,
			Metrics:      metrics.GetHandler(),
			Health:       db.Ping,
			ObjectsRoot:  objectsRoot,
			AllowOrigins: cfg.HTTPCors.AllowOrigins,
			DevMode:      cfg.DevMode,
		}),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	// 5. Run until a signal arrives or any component fails
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("grpc server listening", zap.String("addr", lis.Addr().String()))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Worker.Enabled {
		w := worker.NewProcessingWorker(&worker.WorkerConfig{
			Jobs:         db,
			Store:        store,
			PollInterval: cfg.Worker.PollInterval,
			Logger:       logger,
		})
		g.Go(func() error { return w.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
		stopGRPC(shutdownCtx, grpcServer)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// stopGRPC drains in-flight uploads until ctx expires, then forces the stop.
func stopGRPC(ctx context.Context, s *grpc.Server) {
	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.Stop()
	}
}

func newAuthenticator(ctx context.Context, props config.AuthProperties) (middleware.Authenticator, error) {
	owners, err := props.KeyOwners()
	if err != nil {
		return nil, err
	}
	auth := middleware.MultiAuthenticator{middleware.NewAPIKeyAuthenticator(owners)}

	if props.OIDCIssuer != "" {
		// The provider keeps ctx for later key refreshes, so no timeout here.
		oidcAuth, err := middleware.NewOIDCAuthenticator(ctx, props.OIDCIssuer, props.OIDCClientID)
		if err != nil {
			return nil, err
		}
		auth = append(auth, oidcAuth)
	}
	return auth, nil
}
