package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/memo"
)

type createMemoRequest struct {
	Content string `json:"content" validate:"required"`
}

type updateMemoRequest struct {
	ID      string `json:"-" validate:"required,uuid"`
	Content string `json:"content" validate:"required"`
}

type memoIDRequest struct {
	ID string `validate:"required,uuid"`
}

type searchRequest struct {
	Query string `json:"query" validate:"required"`
}

type graphRequest struct {
	Threshold *float64 `validate:"omitempty,gte=-1,lte=1"`
}

// MemoHandler serves the /memos routes.
type MemoHandler struct {
	service *memo.Service
	logger  *zap.Logger
}

// NewMemoHandler creates a new memo handler
func NewMemoHandler(service *memo.Service, logger *zap.Logger) *MemoHandler {
	return &MemoHandler{service: service, logger: logger}
}

// CreateMemo handles POST /memos
func (h *MemoHandler) CreateMemo(w http.ResponseWriter, r *http.Request) {
	var req createMemoRequest
	if !h.decode(w, r, &req) {
		return
	}
	m, err := h.service.Create(r.Context(), req.Content)
	if err != nil {
		h.respondServiceError(w, "Failed to create memo", err)
		return
	}
	h.respondJSON(w, http.StatusCreated, m)
}

// ListMemos handles GET /memos
func (h *MemoHandler) ListMemos(w http.ResponseWriter, r *http.Request) {
	memos, err := h.service.List(r.Context())
	if err != nil {
		h.respondServiceError(w, "Failed to list memos", err)
		return
	}
	if memos == nil {
		memos = []apptype.Memo{}
	}
	h.respondJSON(w, http.StatusOK, memos)
}

// GetMemo handles GET /memos/{memoID}
func (h *MemoHandler) GetMemo(w http.ResponseWriter, r *http.Request) {
	req := memoIDRequest{ID: chi.URLParam(r, "memoID")}
	if err := validateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := h.service.Get(r.Context(), req.ID)
	if err != nil {
		h.respondServiceError(w, "Failed to get memo", err)
		return
	}
	if m == nil {
		h.respondError(w, http.StatusNotFound, "Memo not found")
		return
	}
	h.respondJSON(w, http.StatusOK, m)
}

// UpdateMemo handles PATCH /memos/{memoID}
func (h *MemoHandler) UpdateMemo(w http.ResponseWriter, r *http.Request) {
	var req updateMemoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.ID = chi.URLParam(r, "memoID")
	if err := validateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := h.service.Update(r.Context(), req.ID, req.Content)
	if err != nil {
		h.respondServiceError(w, "Failed to update memo", err)
		return
	}
	if m == nil {
		h.respondError(w, http.StatusNotFound, "Memo not found")
		return
	}
	h.respondJSON(w, http.StatusOK, m)
}

// DeleteMemo handles DELETE /memos/{memoID}
func (h *MemoHandler) DeleteMemo(w http.ResponseWriter, r *http.Request) {
	req := memoIDRequest{ID: chi.URLParam(r, "memoID")}
	if err := validateStruct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	ok, err := h.service.Delete(r.Context(), req.ID)
	if err != nil {
		h.respondServiceError(w, "Failed to delete memo", err)
		return
	}
	if !ok {
		h.respondError(w, http.StatusNotFound, "Memo not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SearchMemos handles POST /memos/search
func (h *MemoHandler) SearchMemos(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.Search(r.Context(), req.Query)
	if err != nil {
		h.respondServiceError(w, "Failed to search memos", err)
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// GetGraph handles GET /memos/graph
func (h *MemoHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	threshold, ok := h.threshold(w, r)
	if !ok {
		return
	}
	g, err := h.service.Graph(r.Context(), threshold)
	if err != nil {
		h.respondServiceError(w, "Failed to build graph", err)
		return
	}
	h.respondJSON(w, http.StatusOK, g)
}

// GetGraph3D handles GET /memos/graph/3d
func (h *MemoHandler) GetGraph3D(w http.ResponseWriter, r *http.Request) {
	threshold, ok := h.threshold(w, r)
	if !ok {
		return
	}
	g, err := h.service.Graph3D(r.Context(), nil, threshold)
	if err != nil {
		h.respondServiceError(w, "Failed to build 3D graph", err)
		return
	}
	h.respondJSON(w, http.StatusOK, g)
}

// threshold parses the optional ?threshold= query parameter.
func (h *MemoHandler) threshold(w http.ResponseWriter, r *http.Request) (*float64, bool) {
	raw := r.URL.Query().Get("threshold")
	if raw == "" {
		return nil, true
	}
	t, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "threshold must be a number")
		return nil, false
	}
	if err := validateStruct(graphRequest{Threshold: &t}); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return &t, true
}

func (h *MemoHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validateStruct(dst); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// respondServiceError maps use case errors to status codes. Collaborator
// failures are logged and reported with a generic message.
func (h *MemoHandler) respondServiceError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, apptype.ErrInvalidInput):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apptype.ErrEmbeddingsDisabled):
		h.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error(msg, zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, msg)
	}
}

func (h *MemoHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	respondJSON(h.logger, w, status, data)
}

func (h *MemoHandler) respondError(w http.ResponseWriter, status int, message string) {
	respondError(h.logger, w, status, message)
}

func respondJSON(logger *zap.Logger, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

func respondError(logger *zap.Logger, w http.ResponseWriter, status int, message string) {
	respondJSON(logger, w, status, map[string]any{
		"error":   true,
		"message": message,
		"code":    status,
	})
}
