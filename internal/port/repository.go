package port

import (
	"time"

	"github.com/vertextoedge/stockfill/internal/domain"
)

// SessionState is the page-lifetime state of a workbench session
type SessionState struct {
	SessionID   string
	CurrentFile string
	ResultFile  domain.ResultFileName
	Columns     []string
	UpdatedAt   time.Time
}

// SessionRepository persists session state between CLI invocations
type SessionRepository interface {
	// LoadSession returns the stored state, or an empty state when none exists
	LoadSession() (*SessionState, error)

	// SaveSession stores the state
	SaveSession(state *SessionState) error

	// ClearSession removes the stored state
	ClearSession() error
}

// AttemptRepository stores download attempt history
type AttemptRepository interface {
	RecordAttempt(attempt *domain.DownloadAttempt) error
	ListAttempts(resultFile domain.ResultFileName, limit int) ([]*domain.DownloadAttempt, error)
	CleanupOldAttempts(olderThan time.Duration) (int, error)
}
