package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/workshop-scheduling/internal/api"
	"github.com/hackgods/workshop-scheduling/internal/appointment"
	"github.com/hackgods/workshop-scheduling/internal/auth"
	"github.com/hackgods/workshop-scheduling/internal/config"
	"github.com/hackgods/workshop-scheduling/internal/db"
	"github.com/hackgods/workshop-scheduling/internal/logging"
	"github.com/hackgods/workshop-scheduling/internal/notify"
	redisclient "github.com/hackgods/workshop-scheduling/internal/redis"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load error", slog.Any("err", err))
		os.Exit(1)
	}

	log := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info("api-server starting up",
		slog.String("env", cfg.Env),
		slog.String("http_port", cfg.HTTPPort),
		slog.String("version", version),
	)

	if err := run(cfg, log); err != nil {
		log.Error("api-server stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("api-server stopped")
}

func run(cfg config.Config, log *slog.Logger) error {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, cfg.PGMaxConns)
	cancelPg()
	if err != nil {
		return err
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	if err := db.Migrate(rootCtx, pgPool); err != nil {
		return err
	}

	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.ClientOptions{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		PoolSize: cfg.RedisPoolSize,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", slog.Any("err", err))
		}
	}()
	log.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))

	repo := appointment.NewPgRepository(pgPool)
	locker := redisclient.NewMechanicDayLocker(rdb, cfg.LockTTL, cfg.LockWait)
	notifier := notify.Fanout{
		notify.NewLogNotifier(log),
		redisclient.NewPubSubNotifier(rdb, cfg.NotifyPrefix),
	}
	policy := auth.DefaultPolicy()

	svc := appointment.NewService(repo, locker, appointment.ServiceConfig{
		Policy:   policy,
		Selector: appointment.NewRandomSelector(),
		Notifier: notifier,
		Logger:   log,
	})

	router := api.NewRouter(api.RouterConfig{
		Service:    svc,
		Principals: repo,
		Tokens:     auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL),
		Policy:     policy,
		Postgres:   pgPool,
		Redis:      api.RedisPinger(rdb),
		Logger:     log,
		Env:        cfg.Env,
		Version:    version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-rootCtx.Done():
	}

	log.Info("shutting down api-server", slog.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
