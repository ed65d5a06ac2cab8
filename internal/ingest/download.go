package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"
)

type Downloader struct {
	client *http.Client
	logger *zap.Logger
}

// NewDownloader - без таймаута на клиенте, архивы по несколько сотен мегабайт.
// Ограничение по времени задается через ctx.
func NewDownloader(client *http.Client, logger *zap.Logger) *Downloader {
	if client == nil {
		client = &http.Client{}
	}
	return &Downloader{client: client, logger: logger}
}

// Download сохраняет архив в dir под именем из URL. Уже скачанный файл не трогаем.
func (d *Downloader) Download(ctx context.Context, rawURL, dir string) (string, bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false, fmt.Errorf("parse url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "", false, fmt.Errorf("no file name in %s", rawURL)
	}
	dest := filepath.Join(dir, name)

	if info, err := os.Stat(dest); err == nil {
		d.logger.Info("file already exists, skipping download",
			zap.String("file", name),
			zap.Int64("bytes", info.Size()),
		)
		return dest, true, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}

	d.logger.Info("downloading", zap.String("file", name), zap.String("url", rawURL))

	resp, err := d.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("download %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("download %s: unexpected status %d", name, resp.StatusCode)
	}

	// под итоговым именем лежат только докачанные файлы
	tmp, err := os.CreateTemp(dir, name+".*.part")
	if err != nil {
		return "", false, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", false, fmt.Errorf("write %s: %w", name, err)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", false, fmt.Errorf("rename %s: %w", name, err)
	}

	d.logger.Info("download completed", zap.String("file", name), zap.Int64("bytes", n))
	return dest, false, nil
}
