package download

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vertextoedge/stockfill/internal/domain"
	"github.com/vertextoedge/stockfill/internal/domain/event"
	"github.com/vertextoedge/stockfill/internal/port"
)

// User facing messages
const (
	msgNothingToDownload = "没有可下载的结果文件"
	msgPreparing         = "正在准备下载: %s"
	msgExhausted         = "下载失败，请检查浏览器弹窗设置"
	msgInvalidName       = "无效的结果文件名: %s"
)

// Chain runs strategies in order until one reports a positive outcome
type Chain struct {
	strategies []Strategy
	releaser   *Releaser
	notifier   port.Notifier
	dispatcher event.EventDispatcher
	logger     *zap.Logger

	// one download in flight at a time
	mu sync.Mutex
}

// NewChain creates a fallback chain
func NewChain(
	strategies []Strategy,
	releaser *Releaser,
	notifier port.Notifier,
	dispatcher event.EventDispatcher,
	logger *zap.Logger,
) *Chain {
	if releaser == nil {
		releaser = &Releaser{}
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if dispatcher == nil {
		dispatcher = &event.NullDispatcher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		strategies: strategies,
		releaser:   releaser,
		notifier:   notifier,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Strategies returns the strategy names in run order
func (c *Chain) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Run delivers name and never fails; the report tells what happened.
// Each strategy runs at most once.
func (c *Chain) Run(ctx context.Context, name domain.ResultFileName) *domain.DownloadReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	report := &domain.DownloadReport{
		ResultFile: name,
		Outcome:    domain.OutcomeFailed,
	}

	if err := name.Validate(); err != nil {
		if errors.Is(err, domain.ErrNothingToDownload) {
			c.notifier.Alert(port.LevelWarning, msgNothingToDownload)
		} else {
			c.notifier.Alert(port.LevelDanger, fmt.Sprintf(msgInvalidName, name))
		}
		c.logger.Warn("download refused", zap.String("name", name.String()), zap.Error(err))
		return report
	}

	c.notifier.Status(port.LevelProgress, fmt.Sprintf(msgPreparing, name))
	c.dispatcher.Dispatch(event.NewDownloadStarted(name))

	for _, s := range c.strategies {
		start := time.Now()
		res := s.Attempt(ctx, name)
		if res.Outcome == "" {
			res.Outcome = domain.OutcomeFailed
		}
		if res.Outcome == domain.OutcomeFailed && res.Err == nil {
			res.Err = domain.ErrStrategyFailed
		}

		attempt := domain.DownloadAttempt{
			ID:         uuid.NewString(),
			ResultFile: name,
			Strategy:   s.Name(),
			Outcome:    res.Outcome,
			SavedPath:  res.SavedPath,
			Bytes:      res.Bytes,
			Duration:   time.Since(start),
			CreatedAt:  start,
		}
		if res.Err != nil {
			attempt.Error = res.Err.Error()
		}
		report.Attempts = append(report.Attempts, attempt)
		c.dispatcher.Dispatch(event.NewStrategyAttempted(attempt))

		if res.Outcome.IsPositive() {
			report.Outcome = res.Outcome
			report.Strategy = s.Name()
			report.SavedPath = res.SavedPath
			c.dispatcher.Dispatch(event.NewDownloadCompleted(report))
			return report
		}

		c.logger.Debug("falling back to next download strategy",
			zap.String("failed", s.Name()),
			zap.Error(res.Err))
	}

	c.notifier.Status(port.LevelDanger, msgExhausted)
	c.notifier.Alert(port.LevelDanger, msgExhausted)
	c.dispatcher.Dispatch(event.NewDownloadExhausted(name, len(report.Attempts)))

	return report
}

// Wait blocks until deferred releases scheduled by strategies have run
func (c *Chain) Wait() {
	c.releaser.Wait()
}
