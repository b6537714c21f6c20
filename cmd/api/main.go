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
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"landingbuilder.io/internal/audit"
	"landingbuilder.io/internal/auth"
	"landingbuilder.io/internal/config"
	"landingbuilder.io/internal/httpapi"
	"landingbuilder.io/internal/identity/google"
	"landingbuilder.io/internal/migrate"
	"landingbuilder.io/internal/obs"
	"landingbuilder.io/internal/store/memory"
	"landingbuilder.io/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := run(); err != nil {
		obs.Logger().Error("identity-api stopped", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := obs.NewJSONLogger(os.Stdout, cfg.LogLevel)
	obs.SetLogger(logger)
	// Инициализация observability (регистрация метрик)
	obs.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		store   auth.Store
		probe   httpapi.ReadyProbe
		backend = "memory"
	)
	if cfg.DatabaseURL != "" {
		pgStore, err := pg.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer pgStore.Close()
		if cfg.AutoMigrate {
			if err := migrate.NewManager(pgStore.DB(), pg.Migrations, pg.MigrationsDir).Up(ctx); err != nil {
				return fmt.Errorf("auto migrate: %w", err)
			}
			logger.Info("migrations applied")
		}
		store, probe, backend = pgStore, httpapi.ReadyProbe{Store: pgStore}, "postgres"
	} else {
		logger.Warn("DATABASE_URL is empty, state is kept in memory")
		store = memory.New()
	}
	obs.SetBuildInfo(obs.BuildInfo{Version: version, Commit: commit, Store: backend})

	codec, err := auth.NewCodec([]byte(cfg.JWTSecret),
		auth.WithIssuer(cfg.JWTIssuer),
		auth.WithAccessTTL(cfg.AccessTTL()),
	)
	if err != nil {
		return err
	}

	opts := []auth.ServiceOption{
		auth.WithRefreshTTL(cfg.RefreshTTL()),
		auth.WithMagicLinkTTL(cfg.MagicLinkTTL()),
		auth.WithInviteTTL(cfg.InviteTTL()),
		auth.WithReuseRevocation(cfg.ReuseRevokes),
		auth.WithAuditSink(audit.NewRecorder(store, logger)),
		auth.WithLogger(logger),
	}
	if cfg.GoogleEnabled() {
		verifier, err := google.New(ctx, cfg.GoogleClientID, cfg.GoogleJWKSURL, logger)
		if err != nil {
			return fmt.Errorf("google verifier: %w", err)
		}
		defer verifier.Close()
		opts = append(opts, auth.WithIdentityVerifier(verifier))
	} else {
		logger.Info("GOOGLE_CLIENT_ID is empty, google login disabled")
	}

	svc, err := auth.NewService(store, codec, opts...)
	if err != nil {
		return err
	}

	api := httpapi.New(svc, probe,
		httpapi.WithVersion(version),
		httpapi.WithRequestTimeout(cfg.RequestTimeout),
		httpapi.WithRateLimit(httpapi.RateConfig{PerSecond: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst}),
	)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.GRPCAddr != "" {
		gs := httpapi.NewGRPCServer(svc, probe, version, httpapi.WithCallTimeout(cfg.RequestTimeout))
		grpcSrv := gs.NewServer()
		g.Go(func() error {
			lis, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				return fmt.Errorf("grpc listen: %w", err)
			}
			logger.Info("grpc listening", "addr", cfg.GRPCAddr)
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc serve: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				if err := gs.RefreshHealth(gctx); err != nil && gctx.Err() == nil {
					logger.Warn("readiness check failed", "error", err.Error())
				}
				select {
				case <-gctx.Done():
					gs.Shutdown()
					grpcSrv.GracefulStop()
					return nil
				case <-ticker.C:
				}
			}
		})
	}

	err = g.Wait()
	logger.Info("stopped")
	return err
}
