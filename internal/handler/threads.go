package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-engine/internal/middleware"
	"github.com/capitalize-ai/conversation-engine/internal/model"
	"github.com/capitalize-ai/conversation-engine/internal/session"
	"github.com/capitalize-ai/conversation-engine/pkg/logger"
)

// ThreadHandler handles thread message endpoints.
type ThreadHandler struct {
	session *session.Session
	logger  *logger.Logger
}

// NewThreadHandler creates a new thread handler.
func NewThreadHandler(s *session.Session, log *logger.Logger) *ThreadHandler {
	return &ThreadHandler{
		session: s,
		logger:  log,
	}
}

// SendMessage handles POST /api/v1/threads/{id}/messages
func (h *ThreadHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threadID := chi.URLParam(r, "id")

	if err := middleware.ValidateThreadID(threadID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.session.Send(ctx, threadID, req.Content)
	if err != nil {
		h.logger.Error("failed to process message",
			zap.String("thread_id", threadID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	writeJSON(w, http.StatusOK, model.SendMessageResponse{
		Response: result.Response,
		Metadata: result.Metadata,
	})
}

// GetHistory handles GET /api/v1/threads/{id}/messages
func (h *ThreadHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threadID := chi.URLParam(r, "id")

	if err := middleware.ValidateThreadID(threadID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	turns, err := h.session.History(ctx, threadID)
	if err != nil {
		h.logger.Error("failed to load history",
			zap.String("thread_id", threadID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, model.ListTurnsResponse{
		ThreadID: threadID,
		Turns:    turns,
		Total:    len(turns),
	})
}

// ClearThread handles DELETE /api/v1/threads/{id}
func (h *ThreadHandler) ClearThread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threadID := chi.URLParam(r, "id")

	if err := middleware.ValidateThreadID(threadID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existed, err := h.session.ClearThread(ctx, threadID)
	if err != nil {
		h.logger.Error("failed to clear thread",
			zap.String("thread_id", threadID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to clear thread")
		return
	}
	if !existed {
		writeError(w, http.StatusNotFound, "thread not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
