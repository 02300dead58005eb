// cmd/historian/main.go
package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jason-s-yu/holosync/internal/cache"
	"github.com/jason-s-yu/holosync/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type historianConfig struct {
	RedisAddr  string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB    int           `env:"REDIS_DB" envDefault:"0"`
	Queue      string        `env:"HISTORY_QUEUE" envDefault:"holosync_actions"`
	OutPath    string        `env:"HISTORIAN_OUT"`
	BatchSize  int           `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	FlushDelay time.Duration `env:"HISTORIAN_FLUSH_DELAY" envDefault:"500ms"`
	Inactivity time.Duration `env:"MATCH_INACTIVITY_TIMEOUT" envDefault:"10m"`
	LogLevel   string        `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	var cfg historianConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("parse env: %v", err)
	}

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	var sink io.Writer = os.Stdout
	if cfg.OutPath != "" {
		f, err := os.OpenFile(cfg.OutPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatalf("open %s: %v", cfg.OutPath, err)
		}
		defer f.Close()
		sink = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to Redis at %s: %v", cfg.RedisAddr, err)
	}

	svc := historian.New(cache.NewQueueReader(rdb, cfg.Queue), sink, logger, historian.Options{
		BatchSize:  cfg.BatchSize,
		FlushDelay: cfg.FlushDelay,
		Inactivity: cfg.Inactivity,
	})
	svc.Run(ctx)
}
