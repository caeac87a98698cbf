//go:build windows
// +build windows

package filesystem

import (
	"errors"

	"github.com/vertextoedge/stockfill/internal/port"
)

// DiskUsage is not reported on Windows
func (m *Manager) DiskUsage() (*port.DiskUsage, error) {
	return nil, errors.New("disk usage is not supported on windows")
}
