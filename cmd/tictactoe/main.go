package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"libdb.so/hserve"

	"github.com/jaminalder/tictactoe-engine/internal/app"
	"github.com/jaminalder/tictactoe-engine/internal/config"
	"github.com/jaminalder/tictactoe-engine/internal/web"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.LookupEnv)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := cfg.Logger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	code := start(ctx, cfg, logger)
	cancel()
	_ = logger.Sync()
	os.Exit(code)
}

func start(ctx context.Context, cfg config.Config, logger *zap.Logger) int {
	errg, ctx := errgroup.WithContext(ctx)

	svc := app.NewService(cfg.ServiceOptions(), logger.Named("app"))
	errg.Go(func() error { return svc.Start(ctx) })

	handler := web.NewServer(svc, web.Options{
		Logger:    logger.Named("http"),
		Heartbeat: cfg.Heartbeat,
	})

	errg.Go(func() error {
		logger.Info("listening via HTTP",
			zap.String("addr", cfg.Listen),
			zap.String("difficulty", cfg.Difficulty),
			zap.Bool("vs_ai", cfg.VsAI))

		if err := hserve.ListenAndServe(ctx, cfg.Listen, handler); err != nil {
			logger.Error("failed to listen and serve", zap.Error(err))
			return err
		}
		return ctx.Err()
	})

	if err := errg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("service error", zap.Error(err))
		return 1
	}
	return 0
}

