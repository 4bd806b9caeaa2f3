package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"inkwiki/config"
	"inkwiki/internal/document/model"
	"inkwiki/internal/document/service"
	"inkwiki/internal/wiki"
	"inkwiki/pkg/apperr"
	"inkwiki/pkg/logger"
)

type DocumentHandler struct {
	Service  *service.DocumentService
	Template *wiki.Template // nil when no wiki page is served
	Status   config.StatusConfig
}

func NewDocumentHandler(svc *service.DocumentService, tmpl *wiki.Template, status config.StatusConfig) *DocumentHandler {
	return &DocumentHandler{Service: svc, Template: tmpl, Status: status}
}

func (h *DocumentHandler) HasTemplate() bool { return h.Template != nil }

func (h *DocumentHandler) RenderWiki(w http.ResponseWriter, r *http.Request) {
	docs, err := h.Service.All(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	values := make([]map[string]any, 0, len(docs))
	for i := range docs {
		values = append(values, docs[i].APIValue())
	}
	page, err := h.Template.Render(values)
	if err != nil {
		httpError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.Write(page)
}

func (h *DocumentHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Status)
}

func (h *DocumentHandler) AllDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.Service.All(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	values := make([]map[string]any, 0, len(docs))
	for i := range docs {
		values = append(values, docs[i].SkinnyValue())
	}
	writeJSON(w, values)
}

func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Service.Get(r.Context(), r.PathValue("title"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, doc.APIValue())
}

func (h *DocumentHandler) PutDocument(w http.ResponseWriter, r *http.Request) {
	title := r.PathValue("title")
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	revision, err := h.Service.Save(r.Context(), title, raw)
	if err != nil {
		httpError(w, err)
		return
	}
	w.Header().Set("Etag", fmt.Sprintf("default/%s/%d:", title, revision))
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), r.PathValue("title")); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) SignUpload(w http.ResponseWriter, r *http.Request) {
	resp, err := h.Service.RequestUpload(r.Context(), r.URL.Query().Get("filename"), r.URL.Query().Get("content_type"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, resp)
}

func (h *DocumentHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	var req model.InboxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	resp, err := h.Service.CaptureInbox(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, apperr.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, apperr.ErrConfiguration):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, apperr.ErrTimeout):
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	default:
		logger.Sugar.Errorf("Request failed: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
