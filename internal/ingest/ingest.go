package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kitbuilder587/abn-search/internal/domain"
	"github.com/kitbuilder587/abn-search/internal/metrics"
	"github.com/kitbuilder587/abn-search/internal/repository"
)

const (
	DefaultBatchSize  = 1000
	DefaultSampleSize = 100000

	// сколько архивов качаем одновременно
	downloadConcurrency = 2
)

type Config struct {
	WorkDir    string
	Sources    []string
	BatchSize  int
	DevMode    bool
	SampleSize int
	KeepFiles  bool
}

// Report - итог одного прогона.
type Report struct {
	RunID      string
	StartedAt  time.Time
	Duration   time.Duration
	Downloaded int
	Skipped    int
	Files      int
	Parsed     int
	Invalid    int
	Uploaded   int
	Batches    int
	// dev mode: остановились на SampleSize
	Truncated bool
}

type Pipeline struct {
	cfg        Config
	store      repository.RecordStore
	downloader *Downloader
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func New(cfg Config, store repository.RecordStore, downloader *Downloader, logger *zap.Logger, m *metrics.Metrics) *Pipeline {
	if cfg.WorkDir == "" {
		cfg.WorkDir = "data"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = DefaultSampleSize
	}
	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultSources
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if downloader == nil {
		downloader = NewDownloader(nil, logger)
	}

	return &Pipeline{
		cfg:        cfg,
		store:      store,
		downloader: downloader,
		logger:     logger,
		metrics:    m,
	}
}

func (p *Pipeline) RawDir() string {
	return filepath.Join(p.cfg.WorkDir, "raw")
}

func (p *Pipeline) ExtractDir() string {
	return filepath.Join(p.cfg.WorkDir, "extracted")
}

// Run: скачать -> распаковать -> разобрать и загрузить батчами.
// Рабочие каталоги удаляются в конце, даже при ошибке, если не KeepFiles.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	logger := p.logger.With(zap.String("run_id", report.RunID))
	defer func() {
		report.Duration = time.Since(report.StartedAt)
	}()

	logger.Info("ingestion started",
		zap.Bool("dev_mode", p.cfg.DevMode),
		zap.Int("sample_size", p.cfg.SampleSize),
		zap.Int("batch_size", p.cfg.BatchSize),
		zap.Int("sources", len(p.cfg.Sources)),
	)

	for _, dir := range []string{p.RawDir(), p.ExtractDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return report, fmt.Errorf("create work dir: %w", err)
		}
	}
	if !p.cfg.KeepFiles {
		defer p.cleanup(logger)
	}

	archives, err := p.download(ctx, report)
	if err != nil {
		return report, err
	}

	for _, a := range archives {
		if _, err := ExtractZip(a, p.ExtractDir()); err != nil {
			return report, err
		}
		logger.Info("extracted", zap.String("archive", filepath.Base(a)))
	}

	files, err := xmlFiles(p.ExtractDir())
	if err != nil {
		return report, fmt.Errorf("list extracted files: %w", err)
	}

	err = p.loadFiles(ctx, files, report, logger)

	logger.Info("ingestion finished",
		zap.Int("files", report.Files),
		zap.Int("parsed", report.Parsed),
		zap.Int("invalid", report.Invalid),
		zap.Int("uploaded", report.Uploaded),
		zap.Int("batches", report.Batches),
		zap.Bool("truncated", report.Truncated),
		zap.Duration("duration", time.Since(report.StartedAt)),
		zap.Error(err),
	)
	return report, err
}

func (p *Pipeline) download(ctx context.Context, report *Report) ([]string, error) {
	paths := make([]string, len(p.cfg.Sources))
	skipped := make([]bool, len(p.cfg.Sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadConcurrency)
	for i, src := range p.cfg.Sources {
		i, src := i, src
		g.Go(func() error {
			path, skip, err := p.downloader.Download(gctx, src, p.RawDir())
			if err != nil {
				return err
			}
			paths[i] = path
			skipped[i] = skip
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("download sources: %w", err)
	}

	for _, s := range skipped {
		if s {
			report.Skipped++
		} else {
			report.Downloaded++
		}
	}
	return paths, nil
}

func (p *Pipeline) loadFiles(ctx context.Context, files []string, report *Report, logger *zap.Logger) error {
	for _, path := range files {
		if p.sampleReached(report.Uploaded) {
			report.Truncated = true
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		stats, err := p.Load(ctx, f, report)
		f.Close()

		report.Files++
		logger.Info("processed file",
			zap.String("file", filepath.Base(path)),
			zap.Int("parsed", stats.Parsed),
			zap.Int("invalid", stats.Invalid),
			zap.Int("total_uploaded", report.Uploaded),
		)
		if err != nil {
			return fmt.Errorf("load %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

// Load разбирает один XML и пишет записи батчами, дополняя report.
func (p *Pipeline) Load(ctx context.Context, r io.Reader, report *Report) (ParseStats, error) {
	batch := make([]domain.ABRRecord, 0, p.cfg.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.store.UpsertBatch(ctx, batch); err != nil {
			return fmt.Errorf("upsert batch at record %d: %w", report.Uploaded, err)
		}
		report.Uploaded += len(batch)
		report.Batches++
		if p.metrics != nil {
			p.metrics.RecordIngested("uploaded", len(batch))
		}
		batch = batch[:0]
		return nil
	}

	stats, err := ParseRecords(r, func(rec domain.ABRRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch = append(batch, rec)
		if len(batch) >= p.cfg.BatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
		if p.sampleReached(report.Uploaded + len(batch)) {
			report.Truncated = true
			return errStop
		}
		return nil
	})

	report.Parsed += stats.Parsed
	report.Invalid += stats.Invalid
	if p.metrics != nil && stats.Invalid > 0 {
		p.metrics.RecordIngested("invalid", stats.Invalid)
	}

	if err != nil && !errors.Is(err, errStop) {
		return stats, err
	}
	return stats, flush()
}

func (p *Pipeline) sampleReached(n int) bool {
	return p.cfg.DevMode && n >= p.cfg.SampleSize
}

func (p *Pipeline) cleanup(logger *zap.Logger) {
	for _, dir := range []string{p.ExtractDir(), p.RawDir()} {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("cleanup failed", zap.String("dir", dir), zap.Error(err))
			continue
		}
		logger.Info("removed work dir", zap.String("dir", dir))
	}
}

func xmlFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".xml") {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}
