package event

import (
	"time"

	"github.com/vertextoedge/stockfill/internal/domain"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	// EventName returns the name of the event
	EventName() string
	// OccurredAt returns when the event occurred
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events
type BaseEvent struct {
	Timestamp time.Time
}

// OccurredAt returns when the event occurred
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// Event names
const (
	NameFileUploaded        = "file.uploaded"
	NameFileRejected        = "file.rejected"
	NameProcessingCompleted = "processing.completed"
	NameProcessingFailed    = "processing.failed"
	NameDownloadStarted     = "download.started"
	NameStrategyAttempted   = "download.strategy_attempted"
	NameDownloadCompleted   = "download.completed"
	NameDownloadExhausted   = "download.exhausted"
)

// FileUploaded is raised when the server accepted a spreadsheet
type FileUploaded struct {
	BaseEvent
	Filename string
	Columns  int
	Rows     int
}

// EventName returns the event name
func (e FileUploaded) EventName() string {
	return NameFileUploaded
}

// NewFileUploaded creates a new FileUploaded event
func NewFileUploaded(filename string, columns, rows int) FileUploaded {
	return FileUploaded{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		Filename:  filename,
		Columns:   columns,
		Rows:      rows,
	}
}

// FileRejected is raised when local validation refused a file
type FileRejected struct {
	BaseEvent
	Name   string
	Reason string
}

// EventName returns the event name
func (e FileRejected) EventName() string {
	return NameFileRejected
}

// NewFileRejected creates a new FileRejected event
func NewFileRejected(name, reason string) FileRejected {
	return FileRejected{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		Name:      name,
		Reason:    reason,
	}
}

// ProcessingCompleted is raised when /process produced a result file
type ProcessingCompleted struct {
	BaseEvent
	ResultFile  domain.ResultFileName
	Source      string
	Total       int
	Success     int
	SuccessRate float64
}

// EventName returns the event name
func (e ProcessingCompleted) EventName() string {
	return NameProcessingCompleted
}

// NewProcessingCompleted creates a new ProcessingCompleted event
func NewProcessingCompleted(result *domain.ProcessResult, source string) ProcessingCompleted {
	return ProcessingCompleted{
		BaseEvent:   BaseEvent{Timestamp: time.Now()},
		ResultFile:  result.ResultFile,
		Source:      source,
		Total:       result.Statistics.Total,
		Success:     result.Statistics.Success,
		SuccessRate: result.Statistics.SuccessRate,
	}
}

// ProcessingFailed is raised when /process reported an error
type ProcessingFailed struct {
	BaseEvent
	Source string
	Kind   domain.FailureKind
	Error  string
}

// EventName returns the event name
func (e ProcessingFailed) EventName() string {
	return NameProcessingFailed
}

// NewProcessingFailed creates a new ProcessingFailed event
func NewProcessingFailed(source string, kind domain.FailureKind, errMsg string) ProcessingFailed {
	return ProcessingFailed{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		Source:    source,
		Kind:      kind,
		Error:     errMsg,
	}
}

// DownloadStarted is raised before the first strategy runs
type DownloadStarted struct {
	BaseEvent
	ResultFile domain.ResultFileName
}

// EventName returns the event name
func (e DownloadStarted) EventName() string {
	return NameDownloadStarted
}

// NewDownloadStarted creates a new DownloadStarted event
func NewDownloadStarted(name domain.ResultFileName) DownloadStarted {
	return DownloadStarted{
		BaseEvent:  BaseEvent{Timestamp: time.Now()},
		ResultFile: name,
	}
}

// StrategyAttempted is raised after every strategy attempt
type StrategyAttempted struct {
	BaseEvent
	Attempt domain.DownloadAttempt
}

// EventName returns the event name
func (e StrategyAttempted) EventName() string {
	return NameStrategyAttempted
}

// NewStrategyAttempted creates a new StrategyAttempted event
func NewStrategyAttempted(attempt domain.DownloadAttempt) StrategyAttempted {
	return StrategyAttempted{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		Attempt:   attempt,
	}
}

// DownloadCompleted is raised when a strategy ended the chain positively
type DownloadCompleted struct {
	BaseEvent
	ResultFile domain.ResultFileName
	Strategy   string
	Outcome    domain.DownloadOutcome
	SavedPath  string
}

// EventName returns the event name
func (e DownloadCompleted) EventName() string {
	return NameDownloadCompleted
}

// NewDownloadCompleted creates a new DownloadCompleted event
func NewDownloadCompleted(report *domain.DownloadReport) DownloadCompleted {
	return DownloadCompleted{
		BaseEvent:  BaseEvent{Timestamp: time.Now()},
		ResultFile: report.ResultFile,
		Strategy:   report.Strategy,
		Outcome:    report.Outcome,
		SavedPath:  report.SavedPath,
	}
}

// DownloadExhausted is raised when every strategy failed
type DownloadExhausted struct {
	BaseEvent
	ResultFile domain.ResultFileName
	Attempts   int
}

// EventName returns the event name
func (e DownloadExhausted) EventName() string {
	return NameDownloadExhausted
}

// NewDownloadExhausted creates a new DownloadExhausted event
func NewDownloadExhausted(name domain.ResultFileName, attempts int) DownloadExhausted {
	return DownloadExhausted{
		BaseEvent:  BaseEvent{Timestamp: time.Now()},
		ResultFile: name,
		Attempts:   attempts,
	}
}
