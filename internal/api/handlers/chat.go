package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/doctalk/internal/api"
	"github.com/cloo-solutions/doctalk/internal/domain"
)

type AskRequest struct {
	Question string `json:"question"`
}

type AskResponse struct {
	Answer  string             `json:"answer"`
	Sources []domain.SourceRef `json:"sources"`
	Query   string             `json:"query"`

	UserMessage      *MessageResponse `json:"user_message"`
	AssistantMessage *MessageResponse `json:"assistant_message"`
}

// Ask answers a question inside a session and returns the persisted turn.
func (h *SessionHandler) Ask(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}

	result, err := h.svc.Ask(r.Context(), id, req.Question)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, &AskResponse{
		Answer:           result.AssistantMessage.Content,
		Sources:          result.Sources,
		Query:            result.Query,
		UserMessage:      messageToResponse(result.UserMessage),
		AssistantMessage: messageToResponse(result.AssistantMessage),
	})
}
