// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jason-s-yu/holosync/internal/mockserver"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

// serverConfig is the local rules server's environment.
type serverConfig struct {
	Port     string        `env:"PORT" envDefault:"8080"`
	TokenTTL time.Duration `env:"TOKEN_EXPIRE_TIME" envDefault:"1h"`
	LogLevel string        `env:"LOG_LEVEL" envDefault:"debug"`
}

func main() {
	var cfg serverConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("parse env: %v", err)
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	srv, err := mockserver.New(logger, cfg.TokenTTL)
	if err != nil {
		log.Fatalf("init server: %v", err)
	}

	addr := ":" + cfg.Port
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
