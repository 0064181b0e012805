package app

import (
	"context"
	"os/signal"
	"syscall"
)

// Run wires the whole service from the environment and blocks until SIGINT or
// SIGTERM. cmd/parley calls this; returning an error instead of exiting keeps
// defers effective.
func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := LoadConfig()
	log := NewLogger(cfg.LogLevel)

	a, err := New(cfg, log)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
