package port

import (
	"io"
	"time"
)

// ResultStore defines the filesystem operations used to save downloads
type ResultStore interface {
	// RootDir returns the output directory
	RootDir() string

	// ResultPath returns the local path for a result file name
	ResultPath(name string) string

	// SpoolPath returns the temp path used while a result is being written
	SpoolPath(name string) string

	// WriteFile writes content through the spool file and renames it into place
	// Returns: final path, bytes written, error
	WriteFile(name string, reader io.Reader) (string, int64, error)

	// DeleteTempFile removes a spool file, ignoring missing files
	DeleteTempFile(tempPath string) error

	// FileExists checks if a path exists
	FileExists(path string) bool

	// CleanOldTempFiles removes spool files older than the specified duration
	// Returns the number of files deleted
	CleanOldTempFiles(olderThan time.Duration) (int, error)
}

// DiskUsage contains disk usage information for the output directory
type DiskUsage struct {
	Total   uint64
	Used    uint64
	Free    uint64
	UsedPct float64
}

// DiskReporter reports free space of the output volume
type DiskReporter interface {
	DiskUsage() (*DiskUsage, error)
}
