package stockdata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/vertextoedge/stockfill/internal/domain"
)

var errWatcherClosed = errors.New("file watcher closed unexpectedly")

// WatchConfig contains watcher configuration
type WatchConfig struct {
	Dir string

	// Debounce waits for writes to settle before uploading
	Debounce time.Duration

	// MaxRetries bounds retries of transient failures per file
	MaxRetries int

	// ScanExisting uploads CSV files already present at start
	ScanExisting bool
}

type pendingFile struct {
	due     time.Time
	retries int
}

// Watcher uploads CSV files that appear in a directory
type Watcher struct {
	cfg      WatchConfig
	uploader *Uploader
	logger   *zap.Logger

	mu       sync.Mutex
	pending  map[string]*pendingFile
	uploaded int
	skipped  int
	failed   int
}

// WatchStats summarises watcher activity
type WatchStats struct {
	Uploaded int
	Skipped  int
	Failed   int
	Pending  int
}

// NewWatcher creates a new Watcher
func NewWatcher(cfg WatchConfig, uploader *Uploader, logger *zap.Logger) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		cfg:      cfg,
		uploader: uploader,
		logger:   logger,
		pending:  make(map[string]*pendingFile),
	}
}

// Run watches the directory until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create watch dir: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.cfg.Dir, err)
	}

	w.logger.Info("watching for stock data files", zap.String("dir", w.cfg.Dir))

	if w.cfg.ScanExisting {
		w.scanExisting()
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stock data watcher stopped", zap.Any("stats", w.Stats()))
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return errWatcherClosed
			}
			w.handleEvent(ev)

		case err, ok := <-fw.Errors:
			if !ok {
				return errWatcherClosed
			}
			w.logger.Error("watcher error", zap.Error(err))

		case <-ticker.C:
			w.processDue(ctx, time.Now())
		}
	}
}

// Stats returns activity counters
func (w *Watcher) Stats() WatchStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WatchStats{
		Uploaded: w.uploaded,
		Skipped:  w.skipped,
		Failed:   w.failed,
		Pending:  len(w.pending),
	}
}

func (w *Watcher) scanExisting() {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		w.logger.Warn("failed to scan watch dir", zap.Error(err))
		return
	}
	for _, e := range entries {
		if !e.IsDir() && isCSV(e.Name()) {
			w.schedule(filepath.Join(w.cfg.Dir, e.Name()), time.Now())
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !isCSV(ev.Name) {
		return
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	w.logger.Debug("stock data file changed", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
	w.schedule(ev.Name, time.Now().Add(w.cfg.Debounce))
}

// schedule (re)arms the debounce timer for path, keeping its retry count
func (w *Watcher) schedule(path string, due time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pending[path]; ok {
		p.due = due
		return
	}
	w.pending[path] = &pendingFile{due: due}
}

// processDue uploads every pending file whose timer expired
func (w *Watcher) processDue(ctx context.Context, now time.Time) {
	w.mu.Lock()
	var due []string
	for path, p := range w.pending {
		if !now.Before(p.due) {
			due = append(due, path)
		}
	}
	w.mu.Unlock()

	for _, path := range due {
		_, err := w.uploader.Upload(ctx, path)
		w.settle(path, err, now)
	}
}

func (w *Watcher) settle(path string, err error, now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p := w.pending[path]
	if p == nil {
		return
	}

	switch {
	case err == nil:
		delete(w.pending, path)
		w.uploaded++

	case domain.IsSkippable(err):
		delete(w.pending, path)
		w.skipped++
		w.logger.Warn("skipping stock data file", zap.String("path", path), zap.Error(err))

	case domain.IsRetryable(err) && p.retries < w.cfg.MaxRetries:
		p.retries++
		after, _ := domain.GetRetryAfter(err)
		p.due = now.Add(after)
		w.logger.Warn("stock data upload failed, will retry",
			zap.String("path", path),
			zap.Int("retry", p.retries),
			zap.Duration("after", after),
			zap.Error(err))

	default:
		delete(w.pending, path)
		w.failed++
		w.logger.Error("stock data upload failed", zap.String("path", path), zap.Error(err))
	}
}

func isCSV(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".csv")
}
