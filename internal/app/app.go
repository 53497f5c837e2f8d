package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/config"
	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/delivery"
	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/httpapi"
	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/push"
	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/scheduler"
	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/store"
	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/telegram"
)

type App struct {
	cfg       config.Config
	log       *zap.Logger
	repo      store.Repo
	scheduler *scheduler.Scheduler
	httpSrv   *http.Server
}

// New opens the store and wires the engine and the HTTP API.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	// request logs go through zap; keep gin's banner and route dump off stdout
	gin.SetMode(gin.ReleaseMode)

	repo, err := store.OpenSQLite(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	log.Info("sqlite ready", zap.String("path", cfg.DBPath))

	var (
		sender    httpapi.Sender
		publicKey string
		deliverer scheduler.Deliverer
	)
	wp, err := push.NewWebPush(cfg.VAPID(), cfg.PushTTL, &http.Client{Timeout: cfg.PushTimeout})
	switch {
	case errors.Is(err, push.ErrNotConfigured):
		log.Warn("VAPID keys not set, push notifications disabled")
	case err != nil:
		_ = repo.Close()
		return nil, err
	default:
		disp := delivery.NewDispatcher(repo, repo, wp, log, delivery.Options{
			Appearance: push.Appearance{
				Icon:  cfg.NotificationIcon,
				Badge: cfg.NotificationIcon,
				URL:   cfg.NotificationURL,
			},
			AttemptTimeout:    cfg.PushTimeout,
			UserConcurrency:   cfg.UserConcurrency,
			DeviceConcurrency: cfg.DeviceConcurrency,
		})
		sender, deliverer, publicKey = disp, disp, wp.PublicKey()
	}

	var alerter scheduler.Alerter
	if cfg.AlertsEnabled() {
		a, err := telegram.NewAlerter(cfg.TelegramBotToken, cfg.TelegramAlertChatID, log)
		if err != nil {
			// alerts are optional; the engine runs without them
			log.Warn("telegram alerts disabled", zap.Error(err))
		} else {
			alerter = a
		}
	}

	matcher := scheduler.NewMatcher(repo, repo, cfg.MatchWindowMinutes, log)
	sched := scheduler.New(matcher, repo, deliverer, alerter, nil, log, scheduler.Config{
		Zone:        cfg.Zone(),
		DigestSize:  cfg.DigestSize,
		MatchWindow: cfg.MatchWindowMinutes,
		Enabled:     deliverer != nil,
	})

	api := httpapi.NewServer(repo, sender, log, httpapi.Options{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		PublicKey:   publicKey,
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// test sends wait on push services
		WriteTimeout: cfg.PushTimeout + 10*time.Second,
	}

	return &App{cfg: cfg, log: log, repo: repo, scheduler: sched, httpSrv: srv}, nil
}

// Run serves until SIGINT/SIGTERM or ctx is done, then shuts down: the scheduler
// first (waiting for an in-flight run), then HTTP, then the store.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting digest service",
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("zone", a.cfg.Zone().String()),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srvErr := make(chan error, 1)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err, ok := <-srvErr:
		if ok {
			a.log.Error("http server error", zap.Error(err))
			runErr = err
		}
	}

	a.scheduler.Stop()

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := a.httpSrv.Shutdown(shCtx)
	cancel()
	if err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}
	if err := a.repo.Close(); err != nil {
		a.log.Warn("close sqlite failed", zap.Error(err))
	}
	return runErr
}
