package domain

import "strings"

// SourceLocal is the server's local cache; failures against it are never reported
const SourceLocal = "local"

// KnownSources are the data sources the server tracks statistics for
var KnownSources = []string{SourceLocal, "akshare", "sina", "tencent", "eastmoney", "netease", "xueqiu"}

// KeyedSources are the sources that accept an API key
var KeyedSources = []string{"akshare", "tushare", "alpha_vantage", "quandl"}

// FailureKind classifies a processing failure for the adaptive suggestions
type FailureKind string

const (
	FailureTimeout  FailureKind = "timeout"
	FailureAPIError FailureKind = "api_error"
	FailureUnknown  FailureKind = "unknown"
)

var (
	timeoutMarkers  = []string{"超时", "timeout", "连接", "网络"}
	apiErrorMarkers = []string{"API", "密钥"}
)

// ClassifyFailure guesses the failure kind from server error text.
// Matching is case sensitive, like the server messages it inspects.
func ClassifyFailure(message string) FailureKind {
	for _, m := range timeoutMarkers {
		if strings.Contains(message, m) {
			return FailureTimeout
		}
	}
	for _, m := range apiErrorMarkers {
		if strings.Contains(message, m) {
			return FailureAPIError
		}
	}
	return FailureUnknown
}

// Suggestion tells the user whether configuring an API key is advisable
type Suggestion struct {
	ShouldSuggest    bool    `json:"should_suggest"`
	FailureCount     int     `json:"failure_count"`
	FailureThreshold int     `json:"failure_threshold"`
	HasAPIKey        bool    `json:"has_api_key"`
	LastFailure      *string `json:"last_failure"`
	SuggestionReason string  `json:"suggestion_reason"`
}

// SourceStats holds the server's health statistics for one source
type SourceStats struct {
	FailureCount     int     `json:"failure_count"`
	TotalRequests    int     `json:"total_requests"`
	SuccessRate      float64 `json:"success_rate"`
	LastFailure      *string `json:"last_failure"`
	ShouldSuggestAPI bool    `json:"should_suggest_api"`
	SuggestionReason string  `json:"suggestion_reason"`
	HasAPIKey        bool    `json:"has_api_key"`
}

// Health buckets a success rate: >=80 good, >=50 degraded, otherwise bad
func (s SourceStats) Health() string {
	switch {
	case s.SuccessRate >= 80:
		return BadgeSuccess
	case s.SuccessRate >= 50:
		return BadgeWarning
	default:
		return BadgeDanger
	}
}

// APIKeyStatus reports whether a key is configured, never the key itself
type APIKeyStatus struct {
	Configured bool `json:"configured"`
	Length     int  `json:"length"`
}

// ConnectionResult is the outcome of testing one source's credentials
type ConnectionResult struct {
	Source    string `json:"source"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	HasAPIKey bool   `json:"has_api_key"`
	Timestamp string `json:"timestamp,omitempty"`
}

// OK reports whether the server considered the connection healthy
func (c ConnectionResult) OK() bool {
	return c.Status == "success"
}

// SetKeysResult is returned after storing API keys
type SetKeysResult struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}
