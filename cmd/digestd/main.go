package main

import (
	"context"
	"os"
	_ "time/tzdata" // IANA names for DIGEST_TZ in minimal images

	"go.uber.org/zap"

	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/app"
	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/config"
	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet; exit immediately.
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("app init failed", zap.Error(err))
	}

	if err := application.Run(ctx); err != nil {
		log.Fatal("app run failed", zap.Error(err))
	}
}
