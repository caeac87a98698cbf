package download

import (
	"github.com/vertextoedge/stockfill/internal/domain/event"
	"github.com/vertextoedge/stockfill/internal/port"
)

// HistoryHandler stores every strategy attempt
type HistoryHandler struct {
	attempts port.AttemptRepository
}

// NewHistoryHandler creates a new HistoryHandler
func NewHistoryHandler(attempts port.AttemptRepository) *HistoryHandler {
	return &HistoryHandler{attempts: attempts}
}

// Handle records the attempt carried by the event
func (h *HistoryHandler) Handle(e event.DomainEvent) error {
	sa, ok := e.(event.StrategyAttempted)
	if !ok {
		return nil
	}
	attempt := sa.Attempt
	return h.attempts.RecordAttempt(&attempt)
}

// HandledEvents returns the events this handler handles
func (h *HistoryHandler) HandledEvents() []string {
	return []string{event.NameStrategyAttempted}
}
