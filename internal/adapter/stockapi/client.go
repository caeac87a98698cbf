package stockapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/vertextoedge/stockfill/internal/domain"
	"github.com/vertextoedge/stockfill/internal/port"
	"go.uber.org/zap"
)

// maxResponseSize bounds JSON responses; artifacts are streamed separately
const maxResponseSize = 32 * 1024 * 1024

// Client is a stock completion server API client
type Client struct {
	baseURL        string
	userAgent      string
	httpClient     *http.Client
	downloadClient *http.Client
	logger         *zap.Logger
}

// Ensure Client implements port.StockService
var _ port.StockService = (*Client)(nil)

// ClientConfig contains optional client configuration
type ClientConfig struct {
	Timeout         time.Duration // API request timeout (default: 60s)
	DownloadTimeout time.Duration // Artifact download timeout, 0 disables
	SkipTLSVerify   bool
	UserAgent       string
}

// NewClient creates a new API client for the server at baseURL
func NewClient(baseURL string, cfg *ClientConfig, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}
	if cfg == nil {
		cfg = &ClientConfig{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "stockfill"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.SkipTLSVerify,
		},
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	downloadTransport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.SkipTLSVerify,
		},
		IdleConnTimeout:   90 * time.Second,
		ForceAttemptHTTP2: true,

		// Response header timeout (not total download timeout)
		ResponseHeaderTimeout: 30 * time.Second,
	}

	return &Client{
		baseURL:   strings.TrimRight(u.String(), "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		downloadClient: &http.Client{
			Transport: downloadTransport,
			Timeout:   cfg.DownloadTimeout,
		},
		logger: logger,
	}, nil
}

// BaseURL returns the server base URL without trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle connections
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
	c.downloadClient.CloseIdleConnections()
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// doJSON sends a request with an optional JSON body and decodes the answer into out.
// With strict set, a body that reports failure is returned as *APIError even on 2xx.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any, strict bool) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, path, out, strict)
}

// do executes req and decodes the JSON response
func (c *Client) do(req *http.Request, path string, out any, strict bool) error {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		zap.String("method", req.Method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	return decodeResponse(resp, path, out, strict)
}

func decodeResponse(resp *http.Response, path string, out any, strict bool) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	envErr := json.Unmarshal(data, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if envErr != nil {
			return &StatusError{StatusCode: resp.StatusCode, Endpoint: path}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: env.text(), Endpoint: path}
	}
	if envErr != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, envErr)
	}
	if strict && env.failed() {
		return &APIError{StatusCode: resp.StatusCode, Message: env.text(), Endpoint: path}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", path, err)
		}
	}
	return nil
}

// doMultipart uploads body as the "file" field of a multipart form
func (c *Client) doMultipart(ctx context.Context, path, filename, contentType string, body io.Reader, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return fmt.Errorf("failed to read upload body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finish form: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return c.do(req, path, out, true)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// Upload submits a spreadsheet
func (c *Client) Upload(ctx context.Context, file domain.UploadFile, body io.Reader) (*domain.UploadResult, error) {
	var result domain.UploadResult
	if err := c.doMultipart(ctx, pathUpload, file.Name, file.MIMEType, body, &result); err != nil {
		return nil, err
	}
	if result.Filename == "" {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "server did not return a file name", Endpoint: pathUpload}
	}
	return &result, nil
}

// Process runs the completion for an uploaded file
func (c *Client) Process(ctx context.Context, req *domain.ProcessRequest) (*domain.ProcessResult, error) {
	var result domain.ProcessResult
	if err := c.doJSON(ctx, http.MethodPost, pathProcess, req, &result, true); err != nil {
		return nil, err
	}
	return &result, nil
}

// DownloadURL returns the absolute URL of a result file
func (c *Client) DownloadURL(name domain.ResultFileName) string {
	return c.endpoint(pathDownload + url.PathEscape(name.String()))
}

// FetchResult opens the body of a result file
func (c *Client) FetchResult(ctx context.Context, name domain.ResultFileName) (io.ReadCloser, int64, error) {
	path := pathDownload + url.PathEscape(name.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, 0, decodeResponse(resp, pathDownload, nil, true)
	}

	c.logger.Debug("result download opened",
		zap.String("name", name.String()),
		zap.Int("status", resp.StatusCode),
		zap.String("content_type", resp.Header.Get("Content-Type")),
		zap.Int64("content_length", resp.ContentLength))

	return resp.Body, resp.ContentLength, nil
}

// Status checks server liveness
func (c *Client) Status(ctx context.Context) (*domain.ServiceStatus, error) {
	var status domain.ServiceStatus
	if err := c.doJSON(ctx, http.MethodGet, pathStatus, nil, &status, true); err != nil {
		return nil, err
	}
	return &status, nil
}

// StockDataStatus describes the reference dataset
func (c *Client) StockDataStatus(ctx context.Context) (*domain.StockDataStatus, error) {
	var status domain.StockDataStatus
	if err := c.doJSON(ctx, http.MethodGet, pathStockDataStatus, nil, &status, true); err != nil {
		return nil, err
	}
	return &status, nil
}

// UploadStockData uploads a new reference dataset CSV
func (c *Client) UploadStockData(ctx context.Context, name string, body io.Reader) (*domain.StockDataUpload, error) {
	var result domain.StockDataUpload
	if err := c.doMultipart(ctx, pathUploadStockData, name, "text/csv", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AutoUpdateStockData asks the server to rescan its watch directory.
// A false success flag only means no new files were found.
func (c *Client) AutoUpdateStockData(ctx context.Context) (*domain.AutoUpdateResult, error) {
	var result domain.AutoUpdateResult
	if err := c.doJSON(ctx, http.MethodPost, pathAutoUpdateStockData, nil, &result, false); err != nil {
		return nil, err
	}
	return &result, nil
}

// APIKeys returns which sources have keys configured
func (c *Client) APIKeys(ctx context.Context) (map[string]domain.APIKeyStatus, error) {
	var resp struct {
		APIKeys map[string]domain.APIKeyStatus `json:"api_keys"`
	}
	if err := c.doJSON(ctx, http.MethodGet, pathAPIKeys, nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.APIKeys, nil
}

// SetAPIKeys stores the given keys on the server
func (c *Client) SetAPIKeys(ctx context.Context, keys map[string]string) (*domain.SetKeysResult, error) {
	body := map[string]any{"api_keys": keys}
	var result domain.SetKeysResult
	if err := c.doJSON(ctx, http.MethodPost, pathAPIKeys, body, &result, false); err != nil {
		return nil, err
	}
	return &result, nil
}

// TestConnection tests a source's credentials.
// A failed test is a normal result, not an error.
func (c *Client) TestConnection(ctx context.Context, source string) (*domain.ConnectionResult, error) {
	var result domain.ConnectionResult
	if err := c.doJSON(ctx, http.MethodGet, pathTestConnection+url.PathEscape(source), nil, &result, false); err != nil {
		return nil, err
	}
	if result.Source == "" {
		result.Source = source
	}
	return &result, nil
}

// DataSourceConfig returns the server's data-source configuration
func (c *Client) DataSourceConfig(ctx context.Context) (map[string]any, error) {
	var resp struct {
		Config map[string]any `json:"config"`
	}
	if err := c.doJSON(ctx, http.MethodGet, pathDataSourcesConfig, nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Config, nil
}

// SetDataSourceConfig replaces the server's data-source configuration
func (c *Client) SetDataSourceConfig(ctx context.Context, cfg map[string]any) error {
	return c.doJSON(ctx, http.MethodPost, pathDataSourcesConfig, map[string]any{"config": cfg}, nil, true)
}

// Suggestion asks whether configuring an API key for source is advisable
func (c *Client) Suggestion(ctx context.Context, source string) (*domain.Suggestion, error) {
	var resp struct {
		Suggestion *domain.Suggestion `json:"suggestion"`
	}
	if err := c.doJSON(ctx, http.MethodGet, pathSuggestion+url.PathEscape(source), nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Suggestion, nil
}

// RecordFailure reports a data-source failure and returns the updated suggestion
func (c *Client) RecordFailure(ctx context.Context, source string, kind domain.FailureKind) (*domain.Suggestion, error) {
	body := map[string]string{"error_type": string(kind)}
	var resp struct {
		Suggestion *domain.Suggestion `json:"suggestion"`
	}
	if err := c.doJSON(ctx, http.MethodPost, pathRecordFailure+url.PathEscape(source), body, &resp, true); err != nil {
		return nil, err
	}
	return resp.Suggestion, nil
}

// SourceStats returns per-source health statistics
func (c *Client) SourceStats(ctx context.Context) (map[string]domain.SourceStats, error) {
	var resp struct {
		Stats map[string]domain.SourceStats `json:"stats"`
	}
	if err := c.doJSON(ctx, http.MethodGet, pathSourceStats, nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.Stats, nil
}
