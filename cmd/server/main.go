package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/driftline/driftline/internal/cache"
	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/internal/room"
	"github.com/driftline/driftline/internal/server"
)

func main() {
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

// newLogger writes JSON to stdout, and also to a rotating file when
// LOG_FILE is set.
func newLogger(cfg *config.Config) *slog.Logger {
	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     7, // days
		})
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: cfg.LogLevel}))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := server.NewMetrics()
	observers := room.Observers{metrics}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		rdb, err := cache.NewRedis(pingCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		cancel()
		if err != nil {
			return err
		}
		defer rdb.Close()

		presence := cache.NewPresence(rdb, logger, cfg.FinishedTTL+cfg.EmptyGrace+time.Minute)
		observers = append(observers, presence)
		g.Go(func() error { return presence.Run(gctx) })
		logger.Info("presence publishing enabled", "redis", cfg.RedisAddr)
	}

	opts := room.OptionsFromConfig(cfg, logger)
	opts.Observer = observers
	rooms := room.NewRegistry(opts)

	srv := server.New(cfg, rooms, metrics, logger)
	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.Go(func() error {
		logger.Info("server starting",
			"addr", cfg.Addr(),
			"env", cfg.Env,
			"tickRate", cfg.TickRate,
			"maxPlayers", cfg.MaxPlayers,
			"startPolicy", cfg.StartPolicy,
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Stop accepting upgrades first, then close every room so its
		// clients get a SERVER_SHUTDOWN frame.
		err := httpSrv.Shutdown(shutCtx)
		return errors.Join(err, rooms.Shutdown(shutCtx))
	})

	return g.Wait()
}
