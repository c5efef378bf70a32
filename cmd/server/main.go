package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vedran77/dermacheck/internal/blob"
	"github.com/vedran77/dermacheck/internal/config"
	"github.com/vedran77/dermacheck/internal/database"
	"github.com/vedran77/dermacheck/internal/identity"
	"github.com/vedran77/dermacheck/internal/metrics"
	"github.com/vedran77/dermacheck/internal/profile"
	"github.com/vedran77/dermacheck/internal/repository"
	"github.com/vedran77/dermacheck/internal/repository/memory"
	postgresrepo "github.com/vedran77/dermacheck/internal/repository/postgres"
	redisrepo "github.com/vedran77/dermacheck/internal/repository/redis"
	"github.com/vedran77/dermacheck/internal/router"
	"github.com/vedran77/dermacheck/internal/session"
	"github.com/vedran77/dermacheck/internal/transport/http/handlers"
	"github.com/vedran77/dermacheck/internal/transport/http/middleware"
	"github.com/vedran77/dermacheck/internal/transport/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores
	var (
		accounts repository.AccountRepository
		docs     repository.DocumentStore
		tokens   repository.TokenStore
	)

	switch cfg.StoreDriver {
	case config.StorePostgres:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return err
		}
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		logger.Info("connected to database")

		accounts = postgresrepo.NewAccountRepo(pool)
		docs = postgresrepo.NewDocumentRepo(pool)
	default:
		logger.Warn("using in-memory stores, data is lost on restart")
		accounts = memory.NewAccountRepository()
		docs = memory.NewDocumentStore()
	}

	if cfg.RedisAddr != "" {
		client := redisrepo.NewClient(cfg.RedisAddr, cfg.RedisPassword)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		tokens = redisrepo.NewTokenStore(client, cfg.DeviceID)
		logger.Info("session tokens stored in redis", zap.String("device_id", cfg.DeviceID))
	} else {
		tokens = memory.NewTokenStore()
	}

	blobs, err := blob.NewFileStore(cfg.BlobDir, cfg.BlobBaseURL(), logger)
	if err != nil {
		return err
	}

	// Identity
	idp := identity.NewProvider(accounts, tokens, cfg.JWTSecret, cfg.SessionTTL, logger)
	if err := idp.Restore(ctx); err != nil {
		logger.Warn("could not restore previous session", zap.Error(err))
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// Session
	repo := profile.NewRepository(idp, docs, blobs, logger.Named("profile"))
	ctrl := session.New(repo, idp,
		session.WithLogger(logger.Named("session")),
		session.WithMetrics(collector),
		session.WithOpTimeout(cfg.OpTimeout),
	)
	defer ctrl.Close()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := ws.NewHub(ctrl, logger.Named("ws"))
	go hub.Run(hubCtx)

	rl := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	defer rl.Stop()

	r := router.New(router.Deps{
		Session:     handlers.NewSessionHandler(ctrl, logger, cfg.MaxAvatarBytes),
		RateLimiter: rl,
		WS:          ws.ServeWS(hub, originPatterns(cfg.CORSAllowedOrigin), logger.Named("ws")),
		Metrics:     metrics.Handler(reg),
		Blobs:       http.FileServer(http.Dir(blobs.Dir())),
		CORSOrigin:  cfg.CORSAllowedOrigin,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	stopHub()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// originPatterns turns CORS origins into host patterns for the websocket
// origin check.
func originPatterns(allowed string) []string {
	var patterns []string
	for _, o := range strings.Split(allowed, ",") {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}
