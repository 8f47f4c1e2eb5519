package handlers

import (
	"net/http"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/api/middleware"
	"github.com/dvloznov/statement-ledger/internal/formats"
	"github.com/rs/zerolog"
)

// contentRequest is the body shared by the format endpoints.
type contentRequest struct {
	Content string `json:"content"`
	Format  string `json:"format"`
	MaxRows int    `json:"max_rows"`
}

// FormatsHandler handles format detection, validation and preview.
type FormatsHandler struct {
	log zerolog.Logger
}

// NewFormatsHandler creates a new formats handler.
func NewFormatsHandler(log zerolog.Logger) *FormatsHandler {
	return &FormatsHandler{log: log}
}

// ListFormats handles GET /api/formats
func (h *FormatsHandler) ListFormats(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"formats": formats.Names(),
	})
}

// Detect handles POST /api/formats/detect
func (h *FormatsHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	name, ok := formats.Detect(req.Content)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"detected": ok,
		"format":   name,
	})
}

// Validate handles POST /api/formats/validate
func (h *FormatsHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Format) == "" {
		req.Format = formats.AutoDetect
	}

	middleware.WriteJSON(w, http.StatusOK, formats.Validate(req.Content, req.Format))
}

// Preview handles POST /api/formats/preview
func (h *FormatsHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	preview, err := formats.BuildPreview(req.Content, req.MaxRows)
	if err != nil {
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, preview)
}
