package port

import (
	"context"
	"io"

	"github.com/vertextoedge/stockfill/internal/domain"
)

// Uploader submits spreadsheets for processing
type Uploader interface {
	// Upload sends the file as multipart field "file"
	Upload(ctx context.Context, file domain.UploadFile, body io.Reader) (*domain.UploadResult, error)
}

// Processor runs the server-side completion
type Processor interface {
	Process(ctx context.Context, req *domain.ProcessRequest) (*domain.ProcessResult, error)
}

// ResultFetcher retrieves generated artifacts
type ResultFetcher interface {
	// FetchResult opens the artifact body. A non-2xx status is an error.
	// Returns: body, content length (-1 if unknown), error
	FetchResult(ctx context.Context, name domain.ResultFileName) (io.ReadCloser, int64, error)

	// DownloadURL returns the absolute URL of the artifact
	DownloadURL(name domain.ResultFileName) string
}

// DataSourceService manages data-source health and credentials on the server
type DataSourceService interface {
	RecordFailure(ctx context.Context, source string, kind domain.FailureKind) (*domain.Suggestion, error)
	Suggestion(ctx context.Context, source string) (*domain.Suggestion, error)
	SourceStats(ctx context.Context) (map[string]domain.SourceStats, error)
	APIKeys(ctx context.Context) (map[string]domain.APIKeyStatus, error)
	SetAPIKeys(ctx context.Context, keys map[string]string) (*domain.SetKeysResult, error)
	TestConnection(ctx context.Context, source string) (*domain.ConnectionResult, error)
	DataSourceConfig(ctx context.Context) (map[string]any, error)
	SetDataSourceConfig(ctx context.Context, cfg map[string]any) error
}

// StockDataService manages the server's reference dataset
type StockDataService interface {
	Status(ctx context.Context) (*domain.ServiceStatus, error)
	StockDataStatus(ctx context.Context) (*domain.StockDataStatus, error)
	UploadStockData(ctx context.Context, name string, body io.Reader) (*domain.StockDataUpload, error)
	AutoUpdateStockData(ctx context.Context) (*domain.AutoUpdateResult, error)
}

// StockService is the full surface of the completion server
type StockService interface {
	Uploader
	Processor
	ResultFetcher
	DataSourceService
	StockDataService
}
