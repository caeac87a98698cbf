package domain

// MaxUploadSize is the largest spreadsheet the server accepts (16 MiB)
const MaxUploadSize int64 = 16 * 1024 * 1024

// UploadFile describes a local file selected for upload
type UploadFile struct {
	Path     string
	Name     string
	MIMEType string
	Size     int64
}

// FileInfo is the server's summary of an uploaded spreadsheet
type FileInfo struct {
	Columns    []string         `json:"columns"`
	Rows       int              `json:"rows"`
	Preview    []map[string]any `json:"preview"`
	FileFormat string           `json:"file_format,omitempty"`
	Encoding   string           `json:"encoding,omitempty"`
	Separator  string           `json:"separator,omitempty"`
}

// UploadResult is returned by a successful upload
type UploadResult struct {
	Filename string   `json:"filename"`
	FileInfo FileInfo `json:"file_info"`
}

// ColumnOption is one entry of a column selector.
// The auto-detect option has an empty Value.
type ColumnOption struct {
	Value string
	Label string
}

// ColumnSelection holds the populated selectors and their chosen values
type ColumnSelection struct {
	CodeOptions  []ColumnOption
	PriceOptions []ColumnOption
	CodeColumn   string
	PriceColumn  string
}
