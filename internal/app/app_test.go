package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/itgoblin-develop/five-minute-brief-sub000/internal/config"
)

func TestRun_ShutsDownOnContextCancel(t *testing.T) {
	cfg := config.Config{
		DBPath:      filepath.Join(t.TempDir(), "app.db"),
		HTTPAddr:    "127.0.0.1:0",
		JWTSecret:   "s3cret",
		DigestTZ:    "+09:00",
		DigestSize:  3,
		PushTimeout: time.Second,
	}
	a, err := New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if gin.Mode() != gin.ReleaseMode {
		t.Fatalf("gin mode = %q, want %q", gin.Mode(), gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
