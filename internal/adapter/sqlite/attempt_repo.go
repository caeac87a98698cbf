package sqlite

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vertextoedge/stockfill/internal/domain"
)

// RecordAttempt stores a download attempt, assigning an ID when missing
func (s *Store) RecordAttempt(attempt *domain.DownloadAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO download_attempts (
			id, result_file, strategy, outcome, error, saved_path, bytes, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		attempt.ID, attempt.ResultFile.String(), attempt.Strategy, string(attempt.Outcome),
		nullString(attempt.Error), nullString(attempt.SavedPath),
		attempt.Bytes, attempt.Duration.Milliseconds(), attempt.CreatedAt.UTC())
	if err != nil {
		if isUniqueConstraintError(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// ListAttempts returns the newest attempts first.
// An empty resultFile lists attempts for all files; limit <= 0 means no limit.
func (s *Store) ListAttempts(resultFile domain.ResultFileName, limit int) ([]*domain.DownloadAttempt, error) {
	query := `
		SELECT id, result_file, strategy, outcome, error, saved_path, bytes, duration_ms, created_at
		FROM download_attempts
	`
	var args []any
	if resultFile != "" {
		query += " WHERE result_file = ?"
		args = append(args, resultFile.String())
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanAttempts(rows)
}

// CleanupOldAttempts deletes attempts older than the given duration
func (s *Store) CleanupOldAttempts(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan).UTC()

	result, err := s.db.Exec("DELETE FROM download_attempts WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, err
	}

	affected, _ := result.RowsAffected()
	return int(affected), nil
}

// scanAttempts scans multiple attempts from rows
func (s *Store) scanAttempts(rows *sql.Rows) ([]*domain.DownloadAttempt, error) {
	var attempts []*domain.DownloadAttempt

	for rows.Next() {
		a := &domain.DownloadAttempt{}
		var resultFile, outcome string
		var errMsg, savedPath sql.NullString
		var durationMs int64

		err := rows.Scan(
			&a.ID, &resultFile, &a.Strategy, &outcome, &errMsg, &savedPath,
			&a.Bytes, &durationMs, &a.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		a.ResultFile = domain.ResultFileName(resultFile)
		a.Outcome = domain.DownloadOutcome(outcome)
		a.Duration = time.Duration(durationMs) * time.Millisecond
		if errMsg.Valid {
			a.Error = errMsg.String
		}
		if savedPath.Valid {
			a.SavedPath = savedPath.String
		}

		attempts = append(attempts, a)
	}

	return attempts, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isUniqueConstraintError checks if the error is a unique constraint violation
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "duplicate key")
}
