package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/kitbuilder587/abn-search/internal/config"
	"github.com/kitbuilder587/abn-search/internal/ingest"
	"github.com/kitbuilder587/abn-search/internal/metrics"
	"github.com/kitbuilder587/abn-search/internal/repository/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ingest: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateIngest(); err != nil {
		return err
	}

	logger, err := config.NewLogger(cfg.Log, "abn-search-ingest")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sources, err := ingest.LoadSources(cfg.Ingest.SourcesFile)
	if err != nil {
		return err
	}

	db, err := postgres.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	p := ingest.New(ingest.Config{
		WorkDir:    cfg.Ingest.WorkDir,
		Sources:    sources,
		BatchSize:  cfg.Ingest.BatchSize,
		DevMode:    cfg.Ingest.DevMode,
		SampleSize: cfg.Ingest.SampleSize,
		KeepFiles:  cfg.Ingest.KeepFiles,
	}, postgres.NewRecordRepo(db), ingest.NewDownloader(nil, logger), logger, metrics.New(nil))

	report, err := p.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info("ingestion report",
		zap.String("run_id", report.RunID),
		zap.Int("uploaded", report.Uploaded),
		zap.Int("invalid", report.Invalid),
		zap.Duration("duration", report.Duration),
	)
	return nil
}
