package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kitbuilder587/abn-search/internal/config"
	"github.com/kitbuilder587/abn-search/internal/metrics"
	"github.com/kitbuilder587/abn-search/internal/query"
	"github.com/kitbuilder587/abn-search/internal/search/abr"
	"github.com/kitbuilder587/abn-search/internal/telegram"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateBot(); err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Log, "abn-search-bot")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)

	apiClient := abr.New(abr.Config{
		BaseURL:       cfg.API.BaseURL,
		Timeout:       cfg.API.Timeout,
		RatePerSecond: cfg.API.RatePerSecond,
	}, logger, m)
	qc := query.New(apiClient, query.Options{
		StaleTime:  cfg.Query.StaleTime,
		CacheTime:  cfg.Query.CacheTime,
		RetryDelay: cfg.Query.RetryDelay,
		Logger:     logger,
		Metrics:    m,
	})

	bot, err := telegram.New(telegram.BotConfig{
		Token:             cfg.Telegram.Token,
		Debug:             cfg.Telegram.Debug,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
	}, qc, logger, m)
	if err != nil {
		return err
	}

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("bot stopped")
	return nil
}
