package download

import (
	"context"
	"fmt"

	"github.com/vertextoedge/stockfill/internal/domain"
	"github.com/vertextoedge/stockfill/internal/port"
)

// WindowStrategy opens the download URL in a new browser window.
// A window handle is the only success signal available.
type WindowStrategy struct {
	opener   port.WindowOpener
	urls     port.ResultFetcher
	notifier port.Notifier
}

// NewWindowStrategy creates a new-window strategy
func NewWindowStrategy(opener port.WindowOpener, urls port.ResultFetcher, notifier port.Notifier) *WindowStrategy {
	return &WindowStrategy{opener: opener, urls: urls, notifier: notifier}
}

// Name returns the strategy name
func (s *WindowStrategy) Name() string {
	return domain.StrategyNewWindow
}

// Attempt opens the window
func (s *WindowStrategy) Attempt(ctx context.Context, name domain.ResultFileName) Result {
	if w := s.opener.OpenWindow(ctx, s.urls.DownloadURL(name)); w == nil {
		return failed(domain.ErrPopupBlocked)
	}

	msg := fmt.Sprintf("在新窗口中下载: %s", name)
	s.notifier.Status(port.LevelSuccess, msg)
	s.notifier.Alert(port.LevelSuccess, msg)

	return Result{Outcome: domain.OutcomeSucceeded}
}
