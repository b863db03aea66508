package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/doctalk/internal/api"
	"github.com/cloo-solutions/doctalk/internal/domain"
	"github.com/cloo-solutions/doctalk/internal/service"
)

type IndexService interface {
	BuildIndex(ctx context.Context, docs []domain.Document) (*service.IndexStatus, error)
	Open(ctx context.Context) (*service.IndexStatus, error)
	Reset(ctx context.Context) error
	Rebuild(ctx context.Context) (*service.IndexStatus, error)
}

type IndexHandler struct {
	svc IndexService
}

func NewIndexHandler(svc IndexService) *IndexHandler {
	return &IndexHandler{svc: svc}
}

type PageRequest struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

type DocumentRequest struct {
	Filename string        `json:"filename"`
	Pages    []PageRequest `json:"pages"`
}

type BuildIndexRequest struct {
	Documents []DocumentRequest `json:"documents"`
}

type IndexStatusResponse struct {
	Chunks    int64 `json:"chunks"`
	Documents int64 `json:"documents"`
}

func statusToResponse(status *service.IndexStatus) *IndexStatusResponse {
	return &IndexStatusResponse{
		Chunks:    status.Chunks,
		Documents: status.Documents,
	}
}

// Build ingests documents into the vector index.
func (h *IndexHandler) Build(w http.ResponseWriter, r *http.Request) {
	var req BuildIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Documents) == 0 {
		api.Error(w, http.StatusBadRequest, "documents are required")
		return
	}

	docs := make([]domain.Document, 0, len(req.Documents))
	for _, d := range req.Documents {
		pages := make([]domain.Page, 0, len(d.Pages))
		for _, p := range d.Pages {
			pages = append(pages, domain.Page{Number: p.Number, Text: p.Text})
		}
		docs = append(docs, domain.Document{Filename: d.Filename, Pages: pages})
	}

	status, err := h.svc.BuildIndex(r.Context(), docs)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, statusToResponse(status))
}

// Status reports the index contents. An index with no chunks is reported
// as not found.
func (h *IndexHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Open(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, statusToResponse(status))
}

// Reset drops every indexed chunk.
func (h *IndexHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Reset(r.Context()); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

// Rebuild re-ingests every archived document from scratch.
func (h *IndexHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Rebuild(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, statusToResponse(status))
}
