// Package stockdata pushes reference stock datasets to the server, either
// one file at a time or by watching a directory for new CSV files.
package stockdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/stockfill/internal/domain"
)

// msgCSVOnly mirrors the server's own rejection text
const msgCSVOnly = "只支持CSV格式的股票数据文件"

// API uploads a dataset file
type API interface {
	UploadStockData(ctx context.Context, name string, body io.Reader) (*domain.StockDataUpload, error)
}

// Uploader validates and uploads dataset files
type Uploader struct {
	api        API
	logger     *zap.Logger
	retryAfter time.Duration
}

// NewUploader creates a new Uploader
func NewUploader(api API, logger *zap.Logger, retryAfter time.Duration) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retryAfter <= 0 {
		retryAfter = 5 * time.Second
	}
	return &Uploader{api: api, logger: logger, retryAfter: retryAfter}
}

// Upload sends the dataset at path.
// Files that can never succeed are returned as SkippableError; transport
// failures are returned as RetryableError.
func (u *Uploader) Upload(ctx context.Context, path string) (*domain.StockDataUpload, error) {
	name := filepath.Base(path)
	if !strings.HasSuffix(strings.ToLower(name), ".csv") {
		return nil, domain.NewSkippableError(
			domain.NewValidationError(domain.ErrUnsupportedFileType, msgCSVOnly), name)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NewSkippableError(err, name)
		}
		return nil, domain.NewRetryableError(fmt.Errorf("open %s: %w", name, err), u.retryAfter)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("stat %s: %w", name, err), u.retryAfter)
	}
	if info.Size() == 0 {
		return nil, domain.NewSkippableError(domain.ErrEmptyFile, name)
	}

	res, err := u.api.UploadStockData(ctx, name, f)
	if err != nil {
		var sm interface{ ServerMessage() string }
		if errors.As(err, &sm) {
			// the server looked at the file and refused it
			return nil, domain.NewSkippableError(err, name)
		}
		return nil, domain.NewRetryableError(err, u.retryAfter)
	}

	u.logger.Info("stock data uploaded",
		zap.String("file", name),
		zap.Int64("size", info.Size()),
		zap.Strings("processed", res.ProcessedFiles))

	return res, nil
}
