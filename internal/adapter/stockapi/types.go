package stockapi

import (
	"errors"
	"fmt"
	"net/http"
)

// Endpoint paths of the completion server
const (
	pathUpload              = "/upload"
	pathProcess             = "/process"
	pathDownload            = "/download/"
	pathStatus              = "/api/status"
	pathStockDataStatus     = "/api/stock_data_status"
	pathUploadStockData     = "/api/upload_stock_data"
	pathAutoUpdateStockData = "/api/auto_update_stock_data"
	pathAPIKeys             = "/api/config/api_keys"
	pathTestConnection      = "/api/config/test_connection/"
	pathDataSourcesConfig   = "/api/config/data_sources"
	pathSuggestion          = "/api/data_source_suggestion/"
	pathRecordFailure       = "/api/record_failure/"
	pathSourceStats         = "/api/data_source_stats"
)

// envelope holds the fields the server uses to signal failure.
// Endpoints use either a success flag or a status string.
type envelope struct {
	Success *bool  `json:"success"`
	Status  string `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// failed reports whether the body itself signals an error
func (e *envelope) failed() bool {
	if e.Success != nil && !*e.Success {
		return true
	}
	return e.Status == "error"
}

// text returns the most specific message in the body
func (e *envelope) text() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// APIError represents an error reported by the completion server
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.StatusCode != 0 && e.StatusCode != http.StatusOK {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Endpoint, msg, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Endpoint, msg)
}

// ServerMessage returns the text the server sent, if any
func (e *APIError) ServerMessage() string {
	return e.Message
}

// IsNotFound returns true if the server answered 404
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// StatusError is a non-2xx response whose body is not the server's JSON,
// such as an HTML error page from a proxy. It carries no server message.
type StatusError struct {
	StatusCode int
	Endpoint   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected response (HTTP %d %s)", e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsNotFound returns true if the response was 404
func (e *StatusError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// AsAPIError extracts an APIError from err
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
