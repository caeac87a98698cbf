package download

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/stockfill/internal/domain"
	"github.com/vertextoedge/stockfill/internal/port"
)

// Deps are the collaborators needed to build strategies by name
type Deps struct {
	Fetcher  port.ResultFetcher
	Store    port.ResultStore
	Clicker  port.LinkClicker
	Opener   port.WindowOpener
	Notifier port.Notifier
	Releaser *Releaser
	Logger   *zap.Logger

	SpoolReleaseDelay  time.Duration
	AssumeSuccessDelay time.Duration
	ProgressInterval   time.Duration
}

// BuildStrategies creates strategies in the given order
func BuildStrategies(order []string, deps Deps) ([]Strategy, error) {
	if len(order) == 0 {
		order = domain.KnownStrategies
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Releaser == nil {
		deps.Releaser = &Releaser{}
	}

	seen := make(map[string]bool, len(order))
	strategies := make([]Strategy, 0, len(order))

	for _, name := range order {
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate download strategy %q", domain.ErrInvalidInput, name)
		}
		seen[name] = true

		switch name {
		case domain.StrategyBufferedFetch:
			strategies = append(strategies, NewFetchStrategy(deps.Fetcher, deps.Store, deps.Notifier,
				deps.Releaser, deps.Logger, deps.SpoolReleaseDelay, deps.ProgressInterval))
		case domain.StrategyDirectLink:
			strategies = append(strategies, NewLinkStrategy(deps.Clicker, deps.Fetcher, deps.Notifier, deps.AssumeSuccessDelay))
		case domain.StrategyNewWindow:
			strategies = append(strategies, NewWindowStrategy(deps.Opener, deps.Fetcher, deps.Notifier))
		default:
			return nil, fmt.Errorf("%w: unknown download strategy %q", domain.ErrInvalidInput, name)
		}
	}

	return strategies, nil
}
