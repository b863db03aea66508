package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cloo-solutions/doctalk/internal/api"
	"github.com/cloo-solutions/doctalk/internal/domain"
	"github.com/cloo-solutions/doctalk/internal/service"
	"github.com/go-chi/chi/v5"
)

type ChatService interface {
	CreateSession(ctx context.Context, title string) (*domain.Session, error)
	ListSessions(ctx context.Context, cursor string, limit int) (*service.SessionPageResult, error)
	DeleteSession(ctx context.Context, id int64) error
	GetHistory(ctx context.Context, sessionID int64) ([]*domain.Message, error)
	RecordMessage(ctx context.Context, sessionID int64, role domain.Role, content string, metadata *domain.MessageMetadata) (*domain.Message, error)
	Ask(ctx context.Context, sessionID int64, question string) (*service.ChatTurnResult, error)
}

type SessionHandler struct {
	svc ChatService
}

func NewSessionHandler(svc ChatService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type CreateSessionRequest struct {
	Title string `json:"title"`
}

type SessionResponse struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

func sessionToResponse(s *domain.Session) *SessionResponse {
	return &SessionResponse{
		ID:        s.ID,
		Title:     s.Title,
		CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type SessionListResponse struct {
	Sessions   []*SessionResponse `json:"sessions"`
	NextCursor string             `json:"next_cursor,omitempty"`
	HasMore    bool               `json:"has_more"`
}

type MessageMetadataResponse struct {
	Sources []domain.SourceRef `json:"sources"`
}

type MessageResponse struct {
	ID        int64                    `json:"id"`
	SessionID int64                    `json:"session_id"`
	Role      string                   `json:"role"`
	Content   string                   `json:"content"`
	Metadata  *MessageMetadataResponse `json:"metadata,omitempty"`
	Timestamp string                   `json:"timestamp"`
}

func messageToResponse(m *domain.Message) *MessageResponse {
	resp := &MessageResponse{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      string(m.Role),
		Content:   m.Content,
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
	}
	if m.Metadata != nil {
		resp.Metadata = &MessageMetadataResponse{Sources: m.Metadata.Sources}
	}
	return resp
}

type AppendMessageRequest struct {
	Role     string                   `json:"role"`
	Content  string                   `json:"content"`
	Metadata *MessageMetadataResponse `json:"metadata"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.svc.CreateSession(r.Context(), req.Title)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, sessionToResponse(session))
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	cursor := r.URL.Query().Get("cursor")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	page, err := h.svc.ListSessions(r.Context(), cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	sessions := make([]*SessionResponse, 0, len(page.Items))
	for _, s := range page.Items {
		sessions = append(sessions, sessionToResponse(s))
	}

	api.Success(w, http.StatusOK, &SessionListResponse{
		Sessions:   sessions,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	})
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteSession(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

func (h *SessionHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	history, err := h.svc.GetHistory(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	messages := make([]*MessageResponse, 0, len(history))
	for _, m := range history {
		messages = append(messages, messageToResponse(m))
	}

	api.Success(w, http.StatusOK, messages)
}

func (h *SessionHandler) AppendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req AppendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	var metadata *domain.MessageMetadata
	if req.Metadata != nil {
		metadata = &domain.MessageMetadata{Sources: req.Metadata.Sources}
	}

	msg, err := h.svc.RecordMessage(r.Context(), id, domain.Role(req.Role), req.Content, metadata)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, messageToResponse(msg))
}

func sessionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		api.Error(w, http.StatusBadRequest, "invalid session id")
		return 0, false
	}
	return id, true
}
