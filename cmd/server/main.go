package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"collabdocs/internal/collab"
	"collabdocs/internal/config"
	"collabdocs/internal/events"
	"collabdocs/internal/jobs"
	"collabdocs/internal/routers"
	"collabdocs/internal/store"
	"collabdocs/internal/utils"
)

const (
	shutdownTimeout = 10 * time.Second
	redisPingWait   = 2 * time.Second
)

var (
	listenAndServe = serve
	exitFunc       = defaultExit
	exit           = os.Exit
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx); err != nil {
		exitFunc(err)
	}
}

// defaultExit runs before a logger may exist, so it reports through the standard logger.
func defaultExit(err error) {
	log.Printf("collabdocs: %v", err)
	exit(1)
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var seeds []store.SeedDocument
	if cfg.SeedFile != "" {
		if seeds, err = store.LoadSeedFile(cfg.SeedFile); err != nil {
			return err
		}
	}
	docs, err := store.NewDocumentStore(seeds...)
	if err != nil {
		return fmt.Errorf("build document store: %w", err)
	}

	feedCtx, stopFeed := context.WithCancel(context.Background())
	feed, closeFeed := startFeed(feedCtx, cfg, logger)
	defer func() {
		stopFeed()
		closeFeed()
	}()

	coord := collab.New(docs, feed, logger)
	defer coord.Shutdown()

	statsJob := jobs.NewStatsReporterJob(coord, logger, cfg.StatsSchedule)
	if err := statsJob.Start(); err != nil {
		return err
	}
	defer statsJob.Stop()

	handler := routers.New(ctx, logger, coord, routers.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		QueueSize:        cfg.ClientQueueSize,
		ReadLimit:        cfg.WSReadLimit,
		ConnectRateRPS:   cfg.ConnectRateRPS,
		ConnectRateBurst: cfg.ConnectRateBurst,
	})

	logger.Info("collabdocs listening", "addr", cfg.Addr(), "documents", docs.Len(), "feed", cfg.RedisAddr != "")
	return listenAndServe(ctx, cfg.Addr(), handler)
}

// startFeed connects the Redis document feed when configured. An unreachable Redis
// leaves the service running without a feed.
func startFeed(ctx context.Context, cfg *config.Config, logger *utils.Logger) (events.Publisher, func()) {
	if cfg.RedisAddr == "" {
		return events.Nop{}, func() {}
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pub := events.NewRedisPublisher(rdb, cfg.RedisChannel, logger, 0)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingWait)
	defer cancel()
	if err := pub.Ping(pingCtx); err != nil {
		logger.Warn("document feed disabled", "redisAddr", cfg.RedisAddr, "error", err)
		_ = pub.Close()
		return events.Nop{}, func() {}
	}

	go pub.Run(ctx)
	logger.Info("document feed enabled", "redisAddr", cfg.RedisAddr, "channel", cfg.RedisChannel)
	return pub, func() {
		<-pub.Done()
		_ = pub.Close()
	}
}

// serve runs the HTTP server until it fails or ctx is cancelled.
func serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
