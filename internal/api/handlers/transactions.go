package handlers

import (
	"context"
	"net/http"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-ledger/internal/api/middleware"
	"github.com/dvloznov/statement-ledger/internal/domain"
	"github.com/dvloznov/statement-ledger/internal/ledger"
	"github.com/dvloznov/statement-ledger/internal/store"
	"github.com/rs/zerolog"
)

// TransactionStore is the part of the store the transaction endpoints use.
type TransactionStore interface {
	FindByID(ctx context.Context, id string) (*domain.Transaction, error)
	AllRecords(ctx context.Context) ([]*domain.Transaction, error)
	ByDateRange(ctx context.Context, from, to civil.Date) ([]*domain.Transaction, error)
	DeleteBatch(ctx context.Context, ids []string) (int64, error)
	DeleteByCriteria(ctx context.Context, c store.Criteria) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	repo   TransactionStore
	ledger *ledger.Ledger
	log    zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo TransactionStore, l *ledger.Ledger, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		repo:   repo,
		ledger: l,
		log:    log,
	}
}

// ListTransactions handles GET /api/transactions
// Query parameters: start_date, end_date (YYYY-MM-DD), category and
// include_descendants.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	from, err := parseDateParam(r, "start_date")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
		return
	}
	to, err := parseDateParam(r, "end_date")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format")
		return
	}

	var transactions []*domain.Transaction
	category := strings.TrimSpace(r.URL.Query().Get("category"))
	switch {
	case category != "":
		transactions, err = h.ledger.TransactionsByCategoryTree(ctx, category, boolParam(r, "include_descendants"))
	case from != nil && to != nil:
		transactions, err = h.repo.ByDateRange(ctx, *from, *to)
	default:
		transactions, err = h.repo.AllRecords(ctx)
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	filter := store.Criteria{From: from, To: to}
	if !filter.IsEmpty() {
		transactions = filterTransactions(transactions, filter)
	}

	// Return array directly for frontend compatibility
	if transactions == nil {
		transactions = []*domain.Transaction{}
	}
	middleware.WriteJSON(w, http.StatusOK, transactions)
}

func filterTransactions(txs []*domain.Transaction, c store.Criteria) []*domain.Transaction {
	out := make([]*domain.Transaction, 0, len(txs))
	for _, t := range txs {
		if c.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// GetTransaction handles GET /api/transactions/{id}
func (h *TransactionsHandler) GetTransaction(w http.ResponseWriter, r *http.Request, id string) {
	t, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeFailure(w, h.log, err, "Failed to get transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, t)
}

// UpdateCategory handles PATCH /api/transactions/{id}
func (h *TransactionsHandler) UpdateCategory(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Category string `json:"category"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	ok, err := h.ledger.UpdateTransactionCategory(r.Context(), id, req.Category)
	if err != nil {
		writeFailure(w, h.log, err, "Failed to update transaction")
		return
	}
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":       id,
		"category": strings.TrimSpace(req.Category),
		"updated":  true,
	})
}

// DeleteTransactions handles DELETE /api/transactions
// The body names ids, or categories with an optional date range, or all.
func (h *TransactionsHandler) DeleteTransactions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs        []string    `json:"ids"`
		Categories []string    `json:"categories"`
		From       *civil.Date `json:"from"`
		To         *civil.Date `json:"to"`
		All        bool        `json:"all"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	var (
		deleted int64
		err     error
	)
	switch {
	case req.All:
		deleted, err = h.repo.DeleteAll(ctx)
	case len(req.IDs) > 0:
		deleted, err = h.repo.DeleteBatch(ctx, req.IDs)
	case len(req.Categories) > 0 || req.From != nil || req.To != nil:
		deleted, err = h.repo.DeleteByCriteria(ctx, store.Criteria{
			Categories: req.Categories,
			From:       req.From,
			To:         req.To,
		})
	default:
		middleware.WriteError(w, http.StatusBadRequest, "ids, categories, a date range or all is required")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to delete transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete transactions")
		return
	}

	h.log.Info().Int64("deleted", deleted).Bool("all", req.All).Msg("Deleted transactions")
	middleware.WriteJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
