package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vertextoedge/stockfill/internal/domain"
	"github.com/vertextoedge/stockfill/internal/port"
)

const sessionKey = "session"

// sessionRecord is the stored form of port.SessionState
type sessionRecord struct {
	SessionID   string    `json:"session_id"`
	CurrentFile string    `json:"current_file"`
	ResultFile  string    `json:"result_file"`
	Columns     []string  `json:"columns"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LoadSession returns the stored session, or an empty one
func (s *Store) LoadSession() (*port.SessionState, error) {
	raw, err := s.getMeta(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if raw == "" {
		return &port.SessionState{}, nil
	}

	var rec sessionRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	return &port.SessionState{
		SessionID:   rec.SessionID,
		CurrentFile: rec.CurrentFile,
		ResultFile:  domain.ResultFileName(rec.ResultFile),
		Columns:     rec.Columns,
		UpdatedAt:   rec.UpdatedAt,
	}, nil
}

// SaveSession stores the session, stamping UpdatedAt
func (s *Store) SaveSession(state *port.SessionState) error {
	state.UpdatedAt = time.Now()
	data, err := json.Marshal(sessionRecord{
		SessionID:   state.SessionID,
		CurrentFile: state.CurrentFile,
		ResultFile:  state.ResultFile.String(),
		Columns:     state.Columns,
		UpdatedAt:   state.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.setMeta(sessionKey, string(data)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// ClearSession removes the stored session
func (s *Store) ClearSession() error {
	if err := s.deleteMeta(sessionKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
