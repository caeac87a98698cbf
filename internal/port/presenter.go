package port

import "github.com/vertextoedge/stockfill/internal/domain"

// Level is the visual severity of a message
type Level string

const (
	LevelInfo     Level = "info"
	LevelProgress Level = "progress"
	LevelSuccess  Level = "success"
	LevelWarning  Level = "warning"
	LevelDanger   Level = "danger"
)

// Notifier shows short messages to the user
type Notifier interface {
	// Alert shows a dismissible banner
	Alert(level Level, message string)

	// Status updates the download status line
	Status(level Level, message string)

	// Progress shows a working indicator until Done is called
	Progress(message string)
	Done()
}

// Presenter renders structured results
type Presenter interface {
	Notifier

	ShowFileInfo(info *domain.FileInfo)
	ShowColumns(sel *domain.ColumnSelection)
	ShowResults(result *domain.ProcessResult, crossValidation bool)
	ShowSuggestion(source string, s *domain.Suggestion)
}
