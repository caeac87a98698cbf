package download

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/vertextoedge/stockfill/internal/domain"
	"github.com/vertextoedge/stockfill/internal/port"
	"github.com/vertextoedge/stockfill/internal/util/ratelimiter"
)

// FetchStrategy downloads the whole body into memory and saves it locally
type FetchStrategy struct {
	fetcher          port.ResultFetcher
	store            port.ResultStore
	notifier         port.Notifier
	releaser         *Releaser
	logger           *zap.Logger
	spoolDelay       time.Duration
	progressInterval time.Duration
}

// NewFetchStrategy creates a buffered fetch strategy
func NewFetchStrategy(
	fetcher port.ResultFetcher,
	store port.ResultStore,
	notifier port.Notifier,
	releaser *Releaser,
	logger *zap.Logger,
	spoolDelay time.Duration,
	progressInterval time.Duration,
) *FetchStrategy {
	if spoolDelay <= 0 {
		spoolDelay = time.Second
	}
	if progressInterval <= 0 {
		progressInterval = 500 * time.Millisecond
	}
	return &FetchStrategy{
		fetcher:          fetcher,
		store:            store,
		notifier:         notifier,
		releaser:         releaser,
		logger:           logger,
		spoolDelay:       spoolDelay,
		progressInterval: progressInterval,
	}
}

// Name returns the strategy name
func (s *FetchStrategy) Name() string {
	return domain.StrategyBufferedFetch
}

// Attempt fetches the result; any failure up to the local save is a failed outcome
func (s *FetchStrategy) Attempt(ctx context.Context, name domain.ResultFileName) Result {
	body, size, err := s.fetcher.FetchResult(ctx, name)
	if err != nil {
		return failed(err)
	}
	defer body.Close()

	s.logger.Debug("fetch response opened",
		zap.String("name", name.String()),
		zap.Int64("content_length", size))

	progress := ratelimiter.NewProgressReader(body, size, s.progressInterval, func(read, total int64) {
		if total > 0 {
			s.notifier.Status(port.LevelProgress, fmt.Sprintf("正在下载: %s (%s / %s)",
				name, humanize.IBytes(uint64(read)), humanize.IBytes(uint64(total))))
		} else {
			s.notifier.Status(port.LevelProgress, fmt.Sprintf("正在下载: %s (%s)",
				name, humanize.IBytes(uint64(read))))
		}
	})

	blob, err := io.ReadAll(progress)
	if err != nil {
		return failed(fmt.Errorf("read body: %w", err))
	}

	s.logger.Debug("blob created",
		zap.String("name", name.String()),
		zap.Int("size", len(blob)))

	path, written, err := s.store.WriteFile(name.String(), bytes.NewReader(blob))

	// A running save owns the spool file; release is scheduled after it returns
	s.releaseSpool(s.store.SpoolPath(name.String()))
	if err != nil {
		return failed(fmt.Errorf("save: %w", err))
	}

	msg := fmt.Sprintf("文件下载完成: %s", name)
	s.notifier.Status(port.LevelSuccess, msg)
	s.notifier.Alert(port.LevelSuccess, fmt.Sprintf("%s → %s (%s)", msg, path, humanize.IBytes(uint64(written))))

	return Result{
		Outcome:   domain.OutcomeSucceeded,
		SavedPath: path,
		Bytes:     written,
	}
}

// releaseSpool removes a spool file left behind by an interrupted save
func (s *FetchStrategy) releaseSpool(spool string) {
	s.releaser.After(s.spoolDelay, func() {
		if !s.store.FileExists(spool) {
			return
		}
		if err := s.store.DeleteTempFile(spool); err != nil {
			s.logger.Warn("failed to release spool file", zap.String("path", spool), zap.Error(err))
		}
	})
}
