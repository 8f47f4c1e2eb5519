package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/statement-ledger/internal/api/handlers"
	"github.com/dvloznov/statement-ledger/internal/api/middleware"
	"github.com/dvloznov/statement-ledger/internal/dedup"
	"github.com/dvloznov/statement-ledger/internal/infra"
	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/rs/zerolog"
)

type routerDeps struct {
	services  *infra.Services
	jobStore  jobs.JobStore
	publisher jobs.Publisher
	policy    dedup.Policy
	log       zerolog.Logger
}

// method dispatches on the request method and answers 405 otherwise.
func method(handlers map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.Method]; ok {
			h(w, r)
			return
		}
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func newRouter(d routerDeps) *http.ServeMux {
	svc := d.services

	formatsHandler := handlers.NewFormatsHandler(d.log)
	importsHandler := handlers.NewImportsHandler(svc.Importer, d.publisher, d.policy, d.log)
	transactionsHandler := handlers.NewTransactionsHandler(svc.Store, svc.Ledger, d.log)
	categoriesHandler := handlers.NewCategoriesHandler(svc.Ledger, svc.Categorizer, d.log)
	jobsHandler := handlers.NewJobsHandler(d.jobStore, d.log)

	// Create router
	mux := http.NewServeMux()

	// Format endpoints
	mux.HandleFunc("/api/formats", method(map[string]http.HandlerFunc{http.MethodGet: formatsHandler.ListFormats}))
	mux.HandleFunc("/api/formats/detect", method(map[string]http.HandlerFunc{http.MethodPost: formatsHandler.Detect}))
	mux.HandleFunc("/api/formats/validate", method(map[string]http.HandlerFunc{http.MethodPost: formatsHandler.Validate}))
	mux.HandleFunc("/api/formats/preview", method(map[string]http.HandlerFunc{http.MethodPost: formatsHandler.Preview}))

	// Import endpoints
	mux.HandleFunc("/api/imports", method(map[string]http.HandlerFunc{http.MethodPost: importsHandler.Import}))
	mux.HandleFunc("/api/imports/parse", method(map[string]http.HandlerFunc{http.MethodPost: importsHandler.Parse}))
	mux.HandleFunc("/api/imports/analyze", method(map[string]http.HandlerFunc{http.MethodPost: importsHandler.Analyze}))
	mux.HandleFunc("/api/imports/jobs", method(map[string]http.HandlerFunc{http.MethodPost: importsHandler.EnqueueImport}))

	// Transactions endpoints
	mux.HandleFunc("/api/transactions", method(map[string]http.HandlerFunc{
		http.MethodGet:    transactionsHandler.ListTransactions,
		http.MethodDelete: transactionsHandler.DeleteTransactions,
	}))
	mux.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		// Extract transaction ID from path
		id := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
		if id == "" || strings.Contains(id, "/") {
			middleware.WriteError(w, http.StatusBadRequest, "Transaction ID is required")
			return
		}
		switch r.Method {
		case http.MethodGet:
			transactionsHandler.GetTransaction(w, r, id)
		case http.MethodPatch:
			transactionsHandler.UpdateCategory(w, r, id)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Categories endpoints
	mux.HandleFunc("/api/categories", method(map[string]http.HandlerFunc{http.MethodGet: categoriesHandler.ListCategories}))
	mux.HandleFunc("/api/categories/stats", method(map[string]http.HandlerFunc{http.MethodGet: categoriesHandler.Stats}))
	mux.HandleFunc("/api/categories/rename", method(map[string]http.HandlerFunc{http.MethodPost: categoriesHandler.Rename}))
	mux.HandleFunc("/api/categories/merge", method(map[string]http.HandlerFunc{http.MethodPost: categoriesHandler.Merge}))
	mux.HandleFunc("/api/categories/delete", method(map[string]http.HandlerFunc{http.MethodPost: categoriesHandler.Delete}))
	mux.HandleFunc("/api/categories/suggest", method(map[string]http.HandlerFunc{http.MethodPost: categoriesHandler.Suggest}))
	mux.HandleFunc("/api/categories/edges", method(map[string]http.HandlerFunc{
		http.MethodPost:   categoriesHandler.AddEdge,
		http.MethodDelete: categoriesHandler.RemoveEdge,
	}))
	mux.HandleFunc("/api/categories/path", method(map[string]http.HandlerFunc{http.MethodGet: categoriesHandler.Path}))
	mux.HandleFunc("/api/categories/descendants", method(map[string]http.HandlerFunc{http.MethodGet: categoriesHandler.Descendants}))
	mux.HandleFunc("/api/categories/tree", method(map[string]http.HandlerFunc{http.MethodGet: categoriesHandler.Tree}))

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", method(map[string]http.HandlerFunc{http.MethodGet: jobsHandler.ListJobs}))
	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		// Extract job ID from path
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return mux
}
