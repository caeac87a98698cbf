package filesystem

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vertextoedge/stockfill/internal/port"
)

// spoolSuffix marks a result file that is still being written
const spoolSuffix = ".downloading"

// Manager saves downloaded result files under an output directory
type Manager struct {
	rootDir    string
	bufferSize int
}

// Ensure Manager implements port.ResultStore
var _ port.ResultStore = (*Manager)(nil)

// NewManager creates a new result store rooted at rootDir
func NewManager(rootDir string) (*Manager, error) {
	return NewManagerWithBufferSize(rootDir, 256*1024)
}

// NewManagerWithBufferSize creates a new result store with a custom copy buffer size
func NewManagerWithBufferSize(rootDir string, bufferSize int) (*Manager, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	if bufferSize <= 0 {
		bufferSize = 256 * 1024
	}

	return &Manager{
		rootDir:    rootDir,
		bufferSize: bufferSize,
	}, nil
}

// RootDir returns the output directory
func (m *Manager) RootDir() string {
	return m.rootDir
}

// ResultPath returns the local path for a result file name.
// Only the base name is used so a name can never escape the output directory.
func (m *Manager) ResultPath(name string) string {
	return filepath.Join(m.rootDir, filepath.Base(filepath.Clean("/"+name)))
}

// SpoolPath returns the temp path used while name is being written
func (m *Manager) SpoolPath(name string) string {
	return m.ResultPath(name) + spoolSuffix
}

// WriteFile copies reader into the spool file and renames it into place.
// A failed copy leaves no partial result behind.
func (m *Manager) WriteFile(name string, reader io.Reader) (string, int64, error) {
	resultPath := m.ResultPath(name)
	tempPath := m.SpoolPath(name)

	f, err := os.Create(tempPath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	buf := make([]byte, m.bufferSize)
	written, err := io.CopyBuffer(f, reader, buf)
	if err != nil {
		f.Close()
		_ = m.DeleteTempFile(tempPath)
		return "", 0, fmt.Errorf("failed to write file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = m.DeleteTempFile(tempPath)
		return "", 0, fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tempPath, resultPath); err != nil {
		_ = m.DeleteTempFile(tempPath)
		return "", 0, fmt.Errorf("failed to rename temp file: %w", err)
	}

	return resultPath, written, nil
}

// DeleteTempFile removes a spool file
func (m *Manager) DeleteTempFile(tempPath string) error {
	if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete temp file: %w", err)
	}
	return nil
}

// FileExists checks if a path exists
func (m *Manager) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CleanOldTempFiles removes spool files older than the specified duration
func (m *Manager) CleanOldTempFiles(olderThan time.Duration) (int, error) {
	count := 0
	threshold := time.Now().Add(-olderThan)

	entries, err := os.ReadDir(m.rootDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read output dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), spoolSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(threshold) {
			if removeErr := os.Remove(filepath.Join(m.rootDir, entry.Name())); removeErr == nil {
				count++
			}
		}
	}
	return count, nil
}
