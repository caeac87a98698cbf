// Package download retrieves generated result files through an ordered
// chain of strategies, stopping at the first one that reports success.
package download

import (
	"context"
	"sync"
	"time"

	"github.com/vertextoedge/stockfill/internal/domain"
)

// Strategy is one way of delivering a result file to the user
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, name domain.ResultFileName) Result
}

// Result is what a single strategy reports back to the chain
type Result struct {
	Outcome   domain.DownloadOutcome
	Err       error
	SavedPath string
	Bytes     int64
}

func failed(err error) Result {
	return Result{Outcome: domain.OutcomeFailed, Err: err}
}

// Releaser runs deferred cleanups and lets the caller wait for them
type Releaser struct {
	wg sync.WaitGroup
}

// After runs fn once d has elapsed
func (r *Releaser) After(d time.Duration, fn func()) {
	r.wg.Add(1)
	time.AfterFunc(d, func() {
		defer r.wg.Done()
		fn()
	})
}

// Wait blocks until every scheduled cleanup has run
func (r *Releaser) Wait() {
	r.wg.Wait()
}
