package http

import (
	"net/http"

	"go.uber.org/zap"

	"shrimp/internal/clock"
	"shrimp/internal/domain"
	"shrimp/internal/service"
)

// StatsHandler serves the tide-charts ingest and dashboard endpoints.
type StatsHandler struct {
	stats      *service.StatsService
	aggregator *service.Aggregator
	log        *zap.Logger
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(stats *service.StatsService, aggregator *service.Aggregator, log *zap.Logger) *StatsHandler {
	return &StatsHandler{
		stats:      stats,
		aggregator: aggregator,
		log:        log,
	}
}

// Summary returns headline counts for ?range=today|week|all.
//
//	@Summary	Dashboard summary
//	@Tags		Stats
//	@Produce	json
//	@Param		range	query		string	false	"today, week or all"
//	@Success	200		{object}	domain.Summary
//	@Router		/api/stats [get]
func (h *StatsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	rng := clock.ParseRange(r.URL.Query().Get("range"))

	summary, err := h.aggregator.Summarize(r.Context(), rng)
	if err != nil {
		writeServiceError(w, h.log, err, "failed to summarize stats")
		return
	}
	writeJSON(w, h.log, summary, http.StatusOK)
}

// Timeline returns bucketed series for ?range=today|week|all.
//
//	@Summary	Dashboard timeline
//	@Tags		Stats
//	@Produce	json
//	@Param		range	query		string	false	"today, week or all"
//	@Success	200		{object}	domain.Timeline
//	@Router		/api/stats/timeline [get]
func (h *StatsHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	rng := clock.ParseRange(r.URL.Query().Get("range"))

	timeline, err := h.aggregator.Timeline(r.Context(), rng)
	if err != nil {
		writeServiceError(w, h.log, err, "failed to build timeline")
		return
	}
	writeJSON(w, h.log, timeline, http.StatusOK)
}

// RecordActivity stores an activity pulse.
//
//	@Summary	Record activity
//	@Tags		Stats
//	@Accept		json
//	@Produce	json
//	@Param		request	body		service.ActivityInput	true	"Activity pulse"
//	@Success	200		{object}	IDResponse
//	@Failure	400		{object}	ErrorResponse
//	@Router		/api/stats/activity [post]
func (h *StatsHandler) RecordActivity(w http.ResponseWriter, r *http.Request) {
	var req service.ActivityInput
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.stats.RecordActivity(r.Context(), req)
	h.respondID(w, id, err, "failed to record activity")
}

// RecordMessages stores a message batch.
//
//	@Summary	Record messages
//	@Tags		Stats
//	@Accept		json
//	@Produce	json
//	@Param		request	body		service.MessageInput	true	"Message batch"
//	@Success	200		{object}	IDResponse
//	@Failure	400		{object}	ErrorResponse
//	@Router		/api/stats/messages [post]
func (h *StatsHandler) RecordMessages(w http.ResponseWriter, r *http.Request) {
	var req service.MessageInput
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.stats.RecordMessage(r.Context(), req)
	h.respondID(w, id, err, "failed to record messages")
}

// RecordTools stores a tool usage event.
//
//	@Summary	Record tool usage
//	@Tags		Stats
//	@Accept		json
//	@Produce	json
//	@Param		request	body		service.ToolInput	true	"Tool usage"
//	@Success	200		{object}	IDResponse
//	@Failure	400		{object}	ErrorResponse
//	@Router		/api/stats/tools [post]
func (h *StatsHandler) RecordTools(w http.ResponseWriter, r *http.Request) {
	var req service.ToolInput
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.stats.RecordTool(r.Context(), req)
	h.respondID(w, id, err, "failed to record tool usage")
}

// RecordSession creates or merges a session.
//
//	@Summary	Record session
//	@Tags		Stats
//	@Accept		json
//	@Produce	json
//	@Param		request	body		domain.SessionUpdate	true	"Session fields"
//	@Success	200		{object}	IDResponse
//	@Failure	400		{object}	ErrorResponse
//	@Router		/api/stats/sessions [post]
func (h *StatsHandler) RecordSession(w http.ResponseWriter, r *http.Request) {
	var req domain.SessionUpdate
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.stats.RecordSession(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err, "failed to record session")
		return
	}
	writeJSON(w, h.log, IDResponse{ID: session.ID}, http.StatusOK)
}

func (h *StatsHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		h.log.Debug("invalid stats request", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, h.log, "Invalid request format", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *StatsHandler) respondID(w http.ResponseWriter, id int64, err error, msg string) {
	if err != nil {
		writeServiceError(w, h.log, err, msg)
		return
	}
	writeJSON(w, h.log, IDResponse{ID: id}, http.StatusOK)
}
