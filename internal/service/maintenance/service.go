package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vertextoedge/stockfill/internal/port"
	"go.uber.org/zap"
)

// Config contains maintenance service configuration
type Config struct {
	// CleanupInterval is how often the background loop runs cleanup
	CleanupInterval time.Duration

	// HistoryMaxAge is the maximum age of download attempts before cleanup
	HistoryMaxAge time.Duration

	// TempFileMaxAge is the maximum age of spool files before cleanup
	TempFileMaxAge time.Duration
}

// DefaultConfig returns default maintenance configuration
func DefaultConfig() *Config {
	return &Config{
		CleanupInterval: time.Hour,
		HistoryMaxAge:   30 * 24 * time.Hour,
		TempFileMaxAge:  24 * time.Hour,
	}
}

// Result counts what one cleanup pass removed
type Result struct {
	TempFiles int
	Attempts  int
}

// Service removes stale spool files and old download history
type Service struct {
	config   *Config
	attempts port.AttemptRepository
	store    port.ResultStore
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new maintenance Service
func New(cfg *Config, attempts port.AttemptRepository, store port.ResultStore, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.HistoryMaxAge == 0 {
		cfg.HistoryMaxAge = 30 * 24 * time.Hour
	}
	if cfg.TempFileMaxAge == 0 {
		cfg.TempFileMaxAge = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		config:   cfg,
		attempts: attempts,
		store:    store,
		logger:   logger,
	}
}

// RunOnce runs every cleanup task a single time
func (s *Service) RunOnce() Result {
	return Result{
		TempFiles: s.cleanupTempFiles(),
		Attempts:  s.cleanupHistory(),
	}
}

// Start runs cleanup periodically until ctx is cancelled or Stop is called
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("maintenance service already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("maintenance service started",
		zap.Duration("cleanup_interval", s.config.CleanupInterval))

	s.wg.Add(1)
	go s.maintenanceLoop(ctx)

	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("maintenance service stopped")
	return nil
}

// Stop stops the maintenance service
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
}

// maintenanceLoop handles periodic maintenance tasks
func (s *Service) maintenanceLoop(ctx context.Context) {
	defer s.wg.Done()

	cleanupTicker := time.NewTicker(s.config.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanupTicker.C:
			s.RunOnce()
		}
	}
}

// cleanupHistory removes old download attempts
func (s *Service) cleanupHistory() int {
	cleared, err := s.attempts.CleanupOldAttempts(s.config.HistoryMaxAge)
	if err != nil {
		s.logger.Error("failed to cleanup download history", zap.Error(err))
		return 0
	}
	if cleared > 0 {
		s.logger.Info("cleaned up old download attempts", zap.Int("count", cleared))
	}
	return cleared
}

// cleanupTempFiles removes old spool files from the output directory
func (s *Service) cleanupTempFiles() int {
	fileCount, err := s.store.CleanOldTempFiles(s.config.TempFileMaxAge)
	if err != nil {
		s.logger.Error("failed to cleanup old temp files", zap.Error(err))
		return 0
	}
	if fileCount > 0 {
		s.logger.Info("cleaned up old temp files from output dir", zap.Int("count", fileCount))
	}
	return fileCount
}
