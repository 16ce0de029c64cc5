package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/iconidentify/mediabot/internal/domain"
	"github.com/iconidentify/mediabot/internal/service"
)

// EventHandler serves the activity log.
type EventHandler struct {
	eventSvc *service.EventService
	logger   *slog.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(eventSvc *service.EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		eventSvc: eventSvc,
		logger:   logger,
	}
}

// EventResponse represents an event in API responses.
type EventResponse struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Severity  string          `json:"severity"`
	Category  string          `json:"category"`
	JobID     string          `json:"job_id,omitempty"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// EventListResponse contains a paginated event list.
type EventListResponse struct {
	Events  []EventResponse `json:"events"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
	HasMore bool            `json:"has_more"`
}

// EventStatsResponse contains event service statistics.
type EventStatsResponse struct {
	Total         int            `json:"total"`
	BySeverity    map[string]int `json:"by_severity"`
	BufferSize    int            `json:"buffer_size"`
	BufferUsed    int            `json:"buffer_used"`
	SQLiteEnabled bool           `json:"sqlite_enabled"`
}

// List handles GET /api/v1/events
// Query parameters:
//   - severity: info, warning, error, success
//   - category: job, retrieval, delivery, storage, system
//   - job_id: events of a single job
//   - limit: max events to return (default 50, max 200)
//   - offset: pagination offset
//   - historical: if "true", query SQLite instead of the ring buffer
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	query := domain.EventQuery{
		Limit:  intParam(r, "limit", 50),
		Offset: intParam(r, "offset", 0),
	}

	q := r.URL.Query()
	if sev := q.Get("severity"); sev != "" {
		severity := domain.EventSeverity(sev)
		query.Filter.Severity = &severity
	}
	if cat := q.Get("category"); cat != "" {
		category := domain.EventCategory(cat)
		query.Filter.Category = &category
	}
	query.Filter.JobID = domain.JobID(q.Get("job_id"))

	var result *domain.EventQueryResult
	if q.Get("historical") == "true" {
		var err error
		result, err = h.eventSvc.QueryHistorical(r.Context(), query)
		if err != nil {
			h.logger.Error("failed to query events", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to query events")
			return
		}
	} else {
		result = h.eventSvc.Query(query)
	}

	resp := EventListResponse{
		Events:  toEventResponses(result.Events),
		Total:   result.Total,
		Limit:   min(max(query.Limit, 1), 200),
		Offset:  query.Offset,
		HasMore: result.HasMore,
	}
	writeJSON(w, http.StatusOK, resp)
}

// Recent handles GET /api/v1/events/recent
func (h *EventHandler) Recent(w http.ResponseWriter, r *http.Request) {
	events := h.eventSvc.GetRecent(intParam(r, "limit", 50))
	writeJSON(w, http.StatusOK, map[string][]EventResponse{"events": toEventResponses(events)})
}

// Stats handles GET /api/v1/events/stats
func (h *EventHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.eventSvc.Stats()

	events := h.eventSvc.GetRecent(stats.BufferSize)
	bySeverity := map[string]int{
		string(domain.EventSeverityInfo):    0,
		string(domain.EventSeverityWarning): 0,
		string(domain.EventSeverityError):   0,
		string(domain.EventSeveritySuccess): 0,
	}
	for _, e := range events {
		bySeverity[string(e.Severity)]++
	}

	writeJSON(w, http.StatusOK, EventStatsResponse{
		Total:         len(events),
		BySeverity:    bySeverity,
		BufferSize:    stats.BufferSize,
		BufferUsed:    stats.BufferUsed,
		SQLiteEnabled: stats.SQLiteEnabled,
	})
}

func toEventResponses(events []domain.Event) []EventResponse {
	out := make([]EventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, EventResponse{
			ID:        string(e.ID),
			Timestamp: e.Timestamp,
			Severity:  string(e.Severity),
			Category:  string(e.Category),
			JobID:     string(e.JobID),
			Message:   e.Message,
			Metadata:  e.Metadata,
		})
	}
	return out
}
