package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/IshaanNene/wxscrape/internal/config"
	"github.com/IshaanNene/wxscrape/internal/observability"
	"github.com/IshaanNene/wxscrape/internal/types"
)

// ImageFormat is a raster format recognised by its leading bytes.
type ImageFormat string

const (
	FormatJPEG ImageFormat = "jpg"
	FormatPNG  ImageFormat = "png"
	FormatGIF  ImageFormat = "gif"
	FormatWEBP ImageFormat = "webp"
)

// DownloadResult tracks a saved image.
type DownloadResult struct {
	URL       string        `json:"url"`
	Index     int           `json:"index"`
	LocalPath string        `json:"local_path"`
	Format    ImageFormat   `json:"format"`
	Size      int64         `json:"size"`
	Hash      string        `json:"hash"`
	Duration  time.Duration `json:"duration"`
}

// Downloader fetches images, validates them and writes them to disk.
type Downloader struct {
	outputDir string
	errorLog  string
	client    *resty.Client
	metrics   *observability.Metrics
	logger    *slog.Logger

	logMu      sync.Mutex
	downloaded atomic.Int64
	failed     atomic.Int64
}

// NewDownloader creates a downloader from the media config.
func NewDownloader(cfg *config.MediaConfig, metrics *observability.Metrics, logger *slog.Logger) *Downloader {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	if metrics == nil {
		metrics = observability.NewMetrics(logger)
	}
	return &Downloader{
		outputDir: cfg.OutputDir,
		errorLog:  cfg.ErrorLogPath,
		client:    client,
		metrics:   metrics,
		logger:    logger.With("component", "media_downloader"),
	}
}

// Download saves the image at rawURL as image_<index>.<ext>. Every failure is
// appended to the error log and returned as a *types.DownloadError.
func (d *Downloader) Download(ctx context.Context, rawURL string, index int) (*DownloadResult, error) {
	start := time.Now()

	res, err := d.download(ctx, rawURL, index)
	if err != nil {
		d.failed.Add(1)
		d.metrics.ImagesFailed.Add(1)
		d.logFailure(rawURL, index, err)
		return nil, &types.DownloadError{URL: rawURL, Index: index, Err: err}
	}

	res.Duration = time.Since(start)
	d.downloaded.Add(1)
	d.metrics.ImagesOK.Add(1)
	d.logger.Debug("image downloaded",
		"index", index,
		"format", res.Format,
		"size", res.Size,
		"hash", res.Hash[:16],
		"duration", res.Duration,
	)
	return res, nil
}

func (d *Downloader) download(ctx context.Context, rawURL string, index int) (*DownloadResult, error) {
	var data []byte
	var err error
	if strings.HasPrefix(rawURL, "data:") {
		data, err = decodeDataURL(rawURL)
	} else {
		data, err = d.fetch(ctx, rawURL)
	}
	if err != nil {
		return nil, err
	}

	format, ok := DetectFormat(data)
	if !ok {
		return nil, types.ErrUnsupportedImage
	}

	if err := os.MkdirAll(d.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	localPath := filepath.Join(d.outputDir, fmt.Sprintf("image_%d.%s", index, format))
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}

	sum := sha256.Sum256(data)
	return &DownloadResult{
		URL:       rawURL,
		Index:     index,
		LocalPath: localPath,
		Format:    format,
		Size:      int64(len(data)),
		Hash:      hex.EncodeToString(sum[:]),
	}, nil
}

func (d *Downloader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("unsupported image url %q", rawURL)
	}
	resp, err := d.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

// DownloadBatch downloads urls with at most concurrent downloads in flight.
// Indexes follow the position in urls, starting at 1.
func (d *Downloader) DownloadBatch(ctx context.Context, urls []string, concurrent int) ([]*DownloadResult, []error) {
	if concurrent < 1 {
		concurrent = 1
	}
	results := make([]*DownloadResult, len(urls))
	errs := make([]error, len(urls))

	sem := make(chan struct{}, concurrent)
	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(i int, rawURL string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i], errs[i] = d.Download(ctx, rawURL, i+1)
		}(i, u)
	}
	wg.Wait()
	return results, errs
}

// Stats returns download statistics.
func (d *Downloader) Stats() map[string]int64 {
	return map[string]int64{
		"downloaded": d.downloaded.Load(),
		"failed":     d.failed.Load(),
	}
}

func (d *Downloader) logFailure(rawURL string, index int, cause error) {
	d.logger.Warn("image download failed", "index", index, "url", truncate(rawURL, 80), "error", cause)

	d.logMu.Lock()
	defer d.logMu.Unlock()

	if dir := filepath.Dir(d.errorLog); dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
	f, err := os.OpenFile(d.errorLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		d.logger.Error("open error log", "path", d.errorLog, "error", err)
		return
	}
	defer f.Close()
	line := fmt.Sprintf("%s\timage_%d\t%s\t%v\n", time.Now().Format(time.RFC3339), index, truncate(rawURL, 200), cause)
	if _, err := f.WriteString(line); err != nil {
		d.logger.Error("write error log", "path", d.errorLog, "error", err)
	}
}

// DetectFormat identifies the image format from its magic number.
func DetectFormat(data []byte) (ImageFormat, bool) {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return FormatJPEG, true
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}):
		return FormatPNG, true
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return FormatGIF, true
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return FormatWEBP, true
	}
	return "", false
}

func decodeDataURL(raw string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok {
		return nil, errors.New("malformed data url")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decode data url: %w", err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data url: %w", err)
	}
	return []byte(s), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// HumanSize formats a byte count for display.
func HumanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
