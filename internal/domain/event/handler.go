package event

import (
	"go.uber.org/zap"
)

// LoggingHandler logs all events
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger}
}

// Handle logs the event
func (h *LoggingHandler) Handle(event DomainEvent) error {
	switch e := event.(type) {
	case FileUploaded:
		h.logger.Info("file uploaded",
			zap.String("filename", e.Filename),
			zap.Int("columns", e.Columns),
			zap.Int("rows", e.Rows),
		)
	case FileRejected:
		h.logger.Warn("file rejected",
			zap.String("name", e.Name),
			zap.String("reason", e.Reason),
		)
	case ProcessingCompleted:
		h.logger.Info("processing completed",
			zap.String("result_file", e.ResultFile.String()),
			zap.String("source", e.Source),
			zap.Int("total", e.Total),
			zap.Int("success", e.Success),
			zap.Float64("success_rate", e.SuccessRate),
		)
	case ProcessingFailed:
		h.logger.Warn("processing failed",
			zap.String("source", e.Source),
			zap.String("kind", string(e.Kind)),
			zap.String("error", e.Error),
		)
	case StrategyAttempted:
		fields := []zap.Field{
			zap.String("result_file", e.Attempt.ResultFile.String()),
			zap.String("strategy", e.Attempt.Strategy),
			zap.String("outcome", string(e.Attempt.Outcome)),
			zap.Duration("duration", e.Attempt.Duration),
		}
		if e.Attempt.Error != "" {
			fields = append(fields, zap.String("error", e.Attempt.Error))
			h.logger.Warn("download strategy failed", fields...)
		} else {
			h.logger.Info("download strategy finished", fields...)
		}
	case DownloadExhausted:
		h.logger.Error("all download strategies failed",
			zap.String("result_file", e.ResultFile.String()),
			zap.Int("attempts", e.Attempts),
		)
	default:
		h.logger.Debug("domain event",
			zap.String("event", event.EventName()),
			zap.Time("occurred_at", event.OccurredAt()),
		)
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *LoggingHandler) HandledEvents() []string {
	return []string{AllEvents}
}
