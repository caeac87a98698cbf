package domain

import (
	"strings"
	"time"
)

// ResultFileName names a generated artifact on the server.
// The client only uses it as a URL path segment.
type ResultFileName string

// Validate rejects names the server would refuse as path traversal.
func (n ResultFileName) Validate() error {
	s := string(n)
	if s == "" {
		return ErrNothingToDownload
	}
	if strings.Contains(s, "..") || strings.ContainsAny(s, `/\`) {
		return ErrInvalidResultName
	}
	return nil
}

// String returns the raw name
func (n ResultFileName) String() string {
	return string(n)
}

// DownloadOutcome is the result of a single strategy attempt
type DownloadOutcome string

const (
	OutcomeSucceeded     DownloadOutcome = "succeeded"
	OutcomeFailed        DownloadOutcome = "failed"
	OutcomeIndeterminate DownloadOutcome = "indeterminate"
)

// IsPositive reports whether the chain should stop after this outcome.
// Indeterminate outcomes are assumed successful.
func (o DownloadOutcome) IsPositive() bool {
	return o == OutcomeSucceeded || o == OutcomeIndeterminate
}

// Strategy names
const (
	StrategyBufferedFetch = "fetch"
	StrategyDirectLink    = "link"
	StrategyNewWindow     = "window"
)

// KnownStrategies lists strategy names in their default order
var KnownStrategies = []string{StrategyBufferedFetch, StrategyDirectLink, StrategyNewWindow}

// IsKnownStrategy returns true if name is a supported strategy
func IsKnownStrategy(name string) bool {
	for _, s := range KnownStrategies {
		if s == name {
			return true
		}
	}
	return false
}

// DownloadAttempt records one strategy attempt
type DownloadAttempt struct {
	ID         string
	ResultFile ResultFileName
	Strategy   string
	Outcome    DownloadOutcome
	Error      string
	SavedPath  string
	Bytes      int64
	Duration   time.Duration
	CreatedAt  time.Time
}

// DownloadReport summarises a full run of the fallback chain
type DownloadReport struct {
	ResultFile ResultFileName
	Attempts   []DownloadAttempt
	Outcome    DownloadOutcome
	// Strategy is the name of the strategy that ended the chain, empty when exhausted
	Strategy string
	// SavedPath is set when the file was written locally
	SavedPath string
}

// Succeeded reports whether any strategy produced a positive outcome
func (r *DownloadReport) Succeeded() bool {
	return r.Outcome.IsPositive()
}

// Attempted returns true if the named strategy ran
func (r *DownloadReport) Attempted(strategy string) bool {
	for _, a := range r.Attempts {
		if a.Strategy == strategy {
			return true
		}
	}
	return false
}
