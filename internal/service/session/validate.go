package session

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/vertextoedge/stockfill/internal/domain"
)

// Messages shown when a file is rejected before upload
const (
	msgUnsupportedType = "请上传CSV或Excel文件"
	msgTooLarge        = "文件大小不能超过16MB"
)

var allowedMIMETypes = []string{
	"text/csv",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

var allowedExtensions = []string{".csv", ".xlsx", ".xls"}

// ValidateUpload accepts spreadsheets by MIME type or by extension and
// rejects anything larger than domain.MaxUploadSize.
func ValidateUpload(file domain.UploadFile) error {
	if !isSpreadsheet(file) {
		return domain.NewValidationError(domain.ErrUnsupportedFileType, msgUnsupportedType)
	}
	if file.Size > domain.MaxUploadSize {
		return domain.NewValidationError(
			fmt.Errorf("%w: %s > %s", domain.ErrFileTooLarge,
				humanize.IBytes(uint64(file.Size)), humanize.IBytes(uint64(domain.MaxUploadSize))),
			msgTooLarge)
	}
	return nil
}

func isSpreadsheet(file domain.UploadFile) bool {
	for _, t := range allowedMIMETypes {
		if file.MIMEType == t {
			return true
		}
	}
	name := strings.ToLower(file.Name)
	for _, ext := range allowedExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// DescribeFile stats path and derives its MIME type from the extension
// unless mimeOverride is given.
func DescribeFile(path, mimeOverride string) (domain.UploadFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.UploadFile{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return domain.UploadFile{}, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidInput, path)
	}

	mimeType := mimeOverride
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(path))
	}
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = mt
	}

	return domain.UploadFile{
		Path:     path,
		Name:     filepath.Base(path),
		MIMEType: mimeType,
		Size:     info.Size(),
	}, nil
}
