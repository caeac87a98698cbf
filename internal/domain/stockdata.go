package domain

// StockDataStatus describes the server's reference stock dataset
type StockDataStatus struct {
	CurrentData struct {
		TotalStocks int    `json:"total_stocks"`
		DataSource  string `json:"data_source"`
		LastUpdated string `json:"last_updated"`
	} `json:"current_data"`
	Files struct {
		DataFiles      int `json:"data_files"`
		BackupFiles    int `json:"backup_files"`
		WatchFiles     int `json:"watch_files"`
		ProcessedFiles int `json:"processed_files"`
	} `json:"files"`
	WatchDirectory string `json:"watch_directory"`
}

// StockDataUpload is the server's answer to a dataset upload
type StockDataUpload struct {
	Message        string         `json:"message"`
	Filename       string         `json:"filename"`
	FileInfo       map[string]any `json:"file_info"`
	ProcessedFiles []string       `json:"processed_files"`
}

// AutoUpdateResult is the server's answer to a dataset rescan
type AutoUpdateResult struct {
	Updated  bool     `json:"success"`
	Message  string   `json:"message"`
	NewFiles []string `json:"new_files"`
	Errors   []string `json:"errors"`
}

// ServiceStatus is the liveness answer of /api/status
type ServiceStatus struct {
	Status     string `json:"status"`
	StockCount int    `json:"stock_count"`
	Timestamp  string `json:"timestamp"`
	Error      string `json:"error,omitempty"`
}

// OK reports whether the service answered healthy
func (s ServiceStatus) OK() bool {
	return s.Status == "ok"
}
