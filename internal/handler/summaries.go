package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-engine/internal/middleware"
	"github.com/capitalize-ai/conversation-engine/internal/model"
	"github.com/capitalize-ai/conversation-engine/internal/session"
	"github.com/capitalize-ai/conversation-engine/pkg/logger"
)

// SummaryHandler handles summary endpoints.
type SummaryHandler struct {
	session *session.Session
	logger  *logger.Logger
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(s *session.Session, log *logger.Logger) *SummaryHandler {
	return &SummaryHandler{
		session: s,
		logger:  log,
	}
}

// GetSummary handles GET /api/v1/threads/{id}/summary
func (h *SummaryHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")

	if err := middleware.ValidateThreadID(threadID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.session.GetSummary(threadID)
	if err != nil {
		h.logger.Error("failed to load summary",
			zap.String("thread_id", threadID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to load summary")
		return
	}
	if summary == nil {
		writeError(w, http.StatusNotFound, "summary not found")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// GenerateSummary handles POST /api/v1/threads/{id}/summary
func (h *SummaryHandler) GenerateSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threadID := chi.URLParam(r, "id")

	if err := middleware.ValidateThreadID(threadID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.session.GenerateSummary(ctx, threadID)
	if err != nil {
		h.logger.Error("failed to generate summary",
			zap.String("thread_id", threadID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to generate summary")
		return
	}

	writeJSON(w, http.StatusCreated, summary)
}

// UpdateSummary handles PUT /api/v1/threads/{id}/summary
func (h *SummaryHandler) UpdateSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threadID := chi.URLParam(r, "id")

	if err := middleware.ValidateThreadID(threadID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.session.UpdateSummary(ctx, threadID)
	if err != nil {
		h.logger.Error("failed to update summary",
			zap.String("thread_id", threadID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to update summary")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// DeleteSummary handles DELETE /api/v1/threads/{id}/summary
func (h *SummaryHandler) DeleteSummary(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")

	if err := middleware.ValidateThreadID(threadID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existed, err := h.session.DeleteSummary(threadID)
	if err != nil {
		h.logger.Error("failed to delete summary",
			zap.String("thread_id", threadID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to delete summary")
		return
	}
	if !existed {
		writeError(w, http.StatusNotFound, "summary not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListSummaries handles GET /api/v1/summaries
func (h *SummaryHandler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.session.ListSummaries()
	if err != nil {
		h.logger.Error("failed to list summaries", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list summaries")
		return
	}

	writeJSON(w, http.StatusOK, model.ListSummariesResponse{
		Summaries: summaries,
		Total:     len(summaries),
	})
}

// SearchSummaries handles GET /api/v1/summaries/search?q=...
func (h *SummaryHandler) SearchSummaries(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	if err := middleware.ValidateSearchQuery(query); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summaries, err := h.session.SearchSummaries(query)
	if err != nil {
		h.logger.Error("failed to search summaries",
			zap.String("query", query),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to search summaries")
		return
	}

	writeJSON(w, http.StatusOK, model.ListSummariesResponse{
		Summaries: summaries,
		Total:     len(summaries),
	})
}
