package handlers

import (
	"net/http"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/api/middleware"
	"github.com/dvloznov/statement-ledger/internal/categorizer"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/rs/zerolog"
)

// CategoriesHandler handles category-related endpoints.
type CategoriesHandler struct {
	ledger      *ledger.Ledger
	categorizer categorizer.Categorizer
	log         zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler. c backs the
// suggestion endpoint and may be nil.
func NewCategoriesHandler(l *ledger.Ledger, c categorizer.Categorizer, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{
		ledger:      l,
		categorizer: c,
		log:         log,
	}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.ledger.Categories(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list categories")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}
	if categories == nil {
		categories = []string{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// Stats handles GET /api/categories/stats
func (h *CategoriesHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.ledger.Stats(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute category stats")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute category stats")
		return
	}
	if stats == nil {
		stats = []ledger.CategoryStats{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"stats": stats,
		"count": len(stats),
	})
}

// Rename handles POST /api/categories/rename
func (h *CategoriesHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	n, err := h.ledger.Rename(r.Context(), req.From, req.To)
	if err != nil {
		writeFailure(w, h.log, err, "Failed to rename category")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// Merge handles POST /api/categories/merge
func (h *CategoriesHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sources []string `json:"sources"`
		Target  string   `json:"target"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	n, err := h.ledger.Merge(r.Context(), req.Sources, req.Target)
	if err != nil {
		writeFailure(w, h.log, err, "Failed to merge categories")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// Delete handles POST /api/categories/delete
func (h *CategoriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category    string `json:"category"`
		Replacement string `json:"replacement"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	n, err := h.ledger.Delete(r.Context(), req.Category, req.Replacement)
	if err != nil {
		writeFailure(w, h.log, err, "Failed to delete category")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int64{"updated": n})
}

// AddEdge handles POST /api/categories/edges
func (h *CategoriesHandler) AddEdge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Child  string `json:"child"`
		Parent string `json:"parent"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	level, err := h.ledger.AddEdge(r.Context(), req.Child, req.Parent)
	if err != nil {
		writeFailure(w, h.log, err, "Failed to add category edge")
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"child":  strings.TrimSpace(req.Child),
		"parent": strings.TrimSpace(req.Parent),
		"level":  level,
	})
}

// RemoveEdge handles DELETE /api/categories/edges?child=
func (h *CategoriesHandler) RemoveEdge(w http.ResponseWriter, r *http.Request) {
	child := strings.TrimSpace(r.URL.Query().Get("child"))
	if child == "" {
		middleware.WriteError(w, http.StatusBadRequest, "child is required")
		return
	}

	removed, err := h.ledger.RemoveEdge(r.Context(), child)
	if err != nil {
		writeFailure(w, h.log, err, "Failed to remove category edge")
		return
	}
	if !removed {
		middleware.WriteError(w, http.StatusNotFound, "Category has no parent")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

// Path handles GET /api/categories/path?category=
func (h *CategoriesHandler) Path(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if category == "" {
		middleware.WriteError(w, http.StatusBadRequest, "category is required")
		return
	}

	level, _ := h.ledger.Level(category)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"category": category,
		"path":     nonNil(h.ledger.Path(category)),
		"level":    level,
	})
}

// Descendants handles GET /api/categories/descendants?category=
func (h *CategoriesHandler) Descendants(w http.ResponseWriter, r *http.Request) {
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	if category == "" {
		middleware.WriteError(w, http.StatusBadRequest, "category is required")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"category":    category,
		"descendants": nonNil(h.ledger.Descendants(category)),
	})
}

// Tree handles GET /api/categories/tree
func (h *CategoriesHandler) Tree(w http.ResponseWriter, r *http.Request) {
	edges := h.ledger.Tree()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"edges": edges,
		"count": len(edges),
	})
}

// Suggest handles POST /api/categories/suggest
// With {"apply": true} the suggestions are written to the store.
func (h *CategoriesHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	if h.categorizer == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "No categorizer configured")
		return
	}

	var req struct {
		Apply bool `json:"apply"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	suggestions, err := h.ledger.SuggestCategories(ctx, h.categorizer)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to suggest categories")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to suggest categories")
		return
	}
	if suggestions == nil {
		suggestions = []ledger.Suggestion{}
	}

	var applied int64
	if req.Apply {
		applied, err = h.ledger.ApplySuggestions(ctx, suggestions)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to apply category suggestions")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to apply category suggestions")
			return
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": suggestions,
		"applied":     applied,
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
