package datasource

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vertextoedge/stockfill/internal/domain"
)

// DefaultTestSources are tested when no sources are named
var DefaultTestSources = []string{domain.SourceLocal, "akshare", "sina", "tencent", "eastmoney"}

// maxConcurrentTests bounds parallel connection tests
const maxConcurrentTests = 4

// ConnectionTester tests one source's connection on the server
type ConnectionTester interface {
	TestConnection(ctx context.Context, source string) (*domain.ConnectionResult, error)
}

// TestAll tests every source concurrently and returns results in input order.
// A request that fails becomes an error result; one failure never hides the others.
func TestAll(ctx context.Context, tester ConnectionTester, sources []string, logger *zap.Logger) []domain.ConnectionResult {
	if len(sources) == 0 {
		sources = DefaultTestSources
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	results := make([]domain.ConnectionResult, len(sources))

	var g errgroup.Group
	g.SetLimit(maxConcurrentTests)

	for i, source := range sources {
		g.Go(func() error {
			res, err := tester.TestConnection(ctx, source)
			if err != nil {
				logger.Debug("connection test failed", zap.String("source", source), zap.Error(err))
				results[i] = domain.ConnectionResult{
					Source:  source,
					Status:  "error",
					Message: "连接测试失败: " + err.Error(),
				}
				return nil
			}
			r := *res
			if r.Source == "" {
				r.Source = source
			}
			results[i] = r
			return nil
		})
	}

	_ = g.Wait()
	return results
}
