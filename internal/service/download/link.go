package download

import (
	"context"
	"fmt"
	"time"

	"github.com/vertextoedge/stockfill/internal/domain"
	"github.com/vertextoedge/stockfill/internal/port"
)

// LinkStrategy clicks a hidden download link in the browser.
// The browser never confirms the download, so after a pause the attempt is
// reported as indeterminate, which the chain treats as success.
type LinkStrategy struct {
	clicker    port.LinkClicker
	urls       port.ResultFetcher
	notifier   port.Notifier
	assumeWait time.Duration
}

// NewLinkStrategy creates a direct link strategy
func NewLinkStrategy(clicker port.LinkClicker, urls port.ResultFetcher, notifier port.Notifier, assumeWait time.Duration) *LinkStrategy {
	if assumeWait < 0 {
		assumeWait = 0
	}
	return &LinkStrategy{
		clicker:    clicker,
		urls:       urls,
		notifier:   notifier,
		assumeWait: assumeWait,
	}
}

// Name returns the strategy name
func (s *LinkStrategy) Name() string {
	return domain.StrategyDirectLink
}

// Attempt clicks the link and waits before assuming success
func (s *LinkStrategy) Attempt(ctx context.Context, name domain.ResultFileName) Result {
	if err := s.clicker.ClickLink(ctx, s.urls.DownloadURL(name), name.String()); err != nil {
		return failed(err)
	}

	msg := fmt.Sprintf("开始下载: %s", name)
	s.notifier.Status(port.LevelProgress, msg)
	s.notifier.Alert(port.LevelSuccess, msg)

	if s.assumeWait > 0 {
		timer := time.NewTimer(s.assumeWait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
	}

	return Result{Outcome: domain.OutcomeIndeterminate}
}
